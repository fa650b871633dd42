package sim

import (
	"mmcinit/core"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

// DefaultCapabilities is the CAPABILITIES word reported by a healthy
// controller (64-bit addressing supported).
const DefaultCapabilities = 0x376CD08C

// Faults selects misbehaviour of a simulated controller.
type Faults struct {
	AutoCalStuck      bool // AUTO_CAL_STATUS.ACTIVE never clears
	ClockUnstable     bool // CLOCK_CONTROL.INT_STABLE never sets
	No64Bit           bool // CAPABILITIES lacks 64-bit addressing
	DLLCalibrateStuck bool // VENDOR_DLLCAL_CFG.CALIBRATE never self-clears
	DLLFinalizeStuck  bool // VENDOR_DLLCAL_CFG_STA.ACTIVE stays set
}

// SDMMC models the status behaviour of one controller on a Bus. Plain
// configuration registers are left to the bus memory.
type SDMMC struct {
	bus    *Bus
	ctrl   sdmmc.Controller
	base   uintptr
	faults Faults
	resets int
}

// NewSDMMC installs a controller model for ctrl on bus.
func NewSDMMC(bus *Bus, ctrl sdmmc.Controller, faults Faults) *SDMMC {
	m := &SDMMC{
		bus:    bus,
		ctrl:   ctrl,
		base:   ctrl.Base(),
		faults: faults,
	}
	m.powerOn()

	set, _, mask := tegra.ResetRegs(ctrl.Peripheral())
	bus.OnWrite(set, func(v uint32) {
		if v&mask != 0 {
			m.resets++
			m.powerOn()
		}
	})
	bus.OnWrite(m.addr(sdmmc.RegClockControl), m.clockControlWritten)
	bus.OnWrite(m.addr(sdmmc.RegAutoCalConfig), m.autoCalWritten)
	bus.OnWrite(m.addr(sdmmc.RegVendorDLLCalCfg), m.dllCalWritten)
	return m
}

func (m *SDMMC) addr(r core.Register) uintptr {
	return m.base + r.Offset
}

// powerOn puts every register of the block at its reset value.
func (m *SDMMC) powerOn() {
	m.bus.Clear(m.base, m.base+sdmmc.BlockStride)
	caps := uint32(DefaultCapabilities)
	if m.faults.No64Bit {
		caps &^= sdmmc.CapCan64Bit
	}
	m.bus.Poke(m.addr(sdmmc.RegCapabilities), core.Width32, caps)
}

// Resets returns how many times the block has been put in reset.
func (m *SDMMC) Resets() int {
	return m.resets
}

// Faults returns the active fault set.
func (m *SDMMC) Faults() Faults {
	return m.faults
}

// SetFaults replaces the fault set and power-cycles the block.
func (m *SDMMC) SetFaults(f Faults) {
	m.faults = f
	m.powerOn()
}

func (m *SDMMC) clockControlWritten(v uint32) {
	a := m.addr(sdmmc.RegClockControl)
	if v&sdmmc.ClockIntEnable != 0 && !m.faults.ClockUnstable {
		v |= sdmmc.ClockIntStable
	} else {
		v &^= sdmmc.ClockIntStable
	}
	m.bus.Poke(a, core.Width16, v)
}

func (m *SDMMC) autoCalWritten(v uint32) {
	if v&sdmmc.AutoCalStart == 0 {
		return
	}
	m.bus.Poke(m.addr(sdmmc.RegAutoCalConfig), core.Width32, v&^sdmmc.AutoCalStart)
	status := m.addr(sdmmc.RegAutoCalStatus)
	if m.faults.AutoCalStuck {
		m.bus.Poke(status, core.Width32, sdmmc.AutoCalActive)
	} else {
		m.bus.Poke(status, core.Width32, 0)
	}
}

func (m *SDMMC) dllCalWritten(v uint32) {
	if v&sdmmc.DLLCalCalibrate == 0 {
		return
	}
	sta := m.addr(sdmmc.RegVendorDLLCalSta)
	if m.faults.DLLFinalizeStuck {
		m.bus.Poke(sta, core.Width32, sdmmc.DLLCalActive)
	} else {
		m.bus.Poke(sta, core.Width32, 0)
	}
	if !m.faults.DLLCalibrateStuck {
		m.bus.Poke(m.addr(sdmmc.RegVendorDLLCalCfg), core.Width32, v&^sdmmc.DLLCalCalibrate)
	}
}
