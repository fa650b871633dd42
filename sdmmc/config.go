package sdmmc

// Mode is the bus speed the controller is prepared for.
type Mode uint8

const (
	ModeStandard Mode = iota
	ModeHS400
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeHS400:
		return "hs400"
	}
	return "unknown"
}

// Voltage is the signalling voltage of the power rail.
type Voltage uint8

const (
	Voltage1V8 Voltage = iota
	Voltage3V3
)

func (v Voltage) String() string {
	switch v {
	case Voltage1V8:
		return "1.8V"
	case Voltage3V3:
		return "3.3V"
	}
	return "unknown"
}

// selector returns the POWER_CONTROL voltage field value.
func (v Voltage) selector() uint32 {
	if v == Voltage3V3 {
		return VoltageSel3V3
	}
	return VoltageSel1V8
}

// Config describes how a controller is brought up.
type Config struct {
	Mode Mode

	// BusWidth is the data width (1, 4 or 8). Bring-up always leaves the
	// controller at 1 bit; the width is recorded for the caller's later
	// bus-width switch.
	BusWidth uint8

	Voltage Voltage

	// NonRemovable marks a soldered-down device (eMMC). The pad input is
	// held powered down while auto-calibration runs.
	NonRemovable bool
}

// DefaultConfig returns the usual configuration for ctrl: 8-bit
// non-removable eMMC at 1.8 V on SDMMC4, 4-bit removable 3.3 V elsewhere.
func DefaultConfig(ctrl Controller) Config {
	if ctrl == SDMMC4 {
		return Config{Mode: ModeStandard, BusWidth: 8, Voltage: Voltage1V8, NonRemovable: true}
	}
	return Config{Mode: ModeStandard, BusWidth: 4, Voltage: Voltage3V3}
}

// Tuning reports whether the mode needs the DQS trim and DLL calibration.
func (c Config) Tuning() bool {
	return c.Mode == ModeHS400
}
