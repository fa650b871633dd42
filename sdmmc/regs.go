package sdmmc

import "mmcinit/core"

// SDMMC block placement. Controller n lives at BlockBase + n*BlockStride.
const (
	BlockBase   = 0x700B0000
	BlockStride = 0x200
)

// Standard SDHCI registers (offsets from the controller base)
var (
	RegHostControl    = core.Register{Name: "HOST_CONTROL", Offset: 0x28, Width: core.Width8}
	RegPowerControl   = core.Register{Name: "POWER_CONTROL", Offset: 0x29, Width: core.Width8}
	RegClockControl   = core.Register{Name: "CLOCK_CONTROL", Offset: 0x2C, Width: core.Width16}
	RegTimeoutControl = core.Register{Name: "TIMEOUT_CONTROL", Offset: 0x2E, Width: core.Width8}
	RegHostControl2   = core.Register{Name: "HOST_CONTROL2", Offset: 0x3E, Width: core.Width16}
	RegCapabilities   = core.Register{Name: "CAPABILITIES", Offset: 0x40, Width: core.Width32}
)

// Vendor registers
var (
	RegVendorClockCntrl  = core.Register{Name: "VENDOR_CLOCK_CNTRL", Offset: 0x100, Width: core.Width32}
	RegVendorCapOverride = core.Register{Name: "VENDOR_CAP_OVERRIDES", Offset: 0x10C, Width: core.Width32}
	RegVendorIOTrimCntrl = core.Register{Name: "VENDOR_IO_TRIM_CNTRL", Offset: 0x1AC, Width: core.Width32}
	RegVendorDLLCalCfg   = core.Register{Name: "VENDOR_DLLCAL_CFG", Offset: 0x1B0, Width: core.Width32}
	RegVendorDLLCalSta   = core.Register{Name: "VENDOR_DLLCAL_CFG_STA", Offset: 0x1BC, Width: core.Width32}
	RegVendorTuning0     = core.Register{Name: "VENDOR_TUNING_CNTRL0", Offset: 0x1C0, Width: core.Width32}
	RegSDMemCompPadCtrl  = core.Register{Name: "SDMEMCOMPPADCTRL", Offset: 0x1E0, Width: core.Width32}
	RegAutoCalConfig     = core.Register{Name: "AUTO_CAL_CONFIG", Offset: 0x1E4, Width: core.Width32}
	RegAutoCalStatus     = core.Register{Name: "AUTO_CAL_STATUS", Offset: 0x1EC, Width: core.Width32}
	RegIOSpare           = core.Register{Name: "IO_SPARE", Offset: 0x1F0, Width: core.Width32}
)

// HOST_CONTROL bits
const (
	HostCtrl4BitBus = 0x02
	HostCtrlHiSpeed = 0x04
	HostCtrlDMAMask = 0x18 // SDMA / ADMA2 select
	HostCtrl8BitBus = 0x20
)

// POWER_CONTROL bits
const (
	PowerOn          = 0x01
	PowerVoltageMask = 0x0E
	PowerVoltage1V8  = 0x0A
	PowerVoltage3V3  = 0x0E
)

// CLOCK_CONTROL bits
const (
	ClockIntEnable     = 0x01
	ClockIntStable     = 0x02
	ClockCardEnable    = 0x04
	ClockProgClockMode = 0x20
	ClockDividerMask   = 0xFFC0
)

// TIMEOUT_CONTROL
const (
	TimeoutDataMask = 0x0F
	TimeoutDataMax  = 0x0E
)

// HOST_CONTROL2 bits
const (
	HostCtrl2Reserved = 0xFFFE0000
	HostCtrl2VDD180   = 0x0008
	HostCtrl2HostV4   = 0x1000
	HostCtrl2Addr64   = 0x2000
)

// CAPABILITIES bits
const (
	CapCan64Bit = 0x10000000
)

// Vendor register bits
const (
	IOSpareOneCycleDelay = 0x00080000 // IO_SPARE[19]
	IOTrimSelVreg        = 0x04

	PadVrefSelMask   = 0x0F
	PadVrefSelValue  = 0x07
	PadEInputPowerDn = 0x80000000 // PAD_E_INPUT_OR_E_PWRD

	AutoCalPUOffsetMask = 0x7F
	AutoCalPDOffsetMask = 0x7F00
	AutoCalOffsetValue  = 0x05
	AutoCalEnable       = 0x20000000
	AutoCalStart        = 0x80000000
	AutoCalActive       = 0x80000000 // AUTO_CAL_STATUS

	TuningTapUpdatedByHW = 0x00020000

	DLLCalCalibrate = 0x80000000
	DLLCalActive    = 0x80000000 // VENDOR_DLLCAL_CFG_STA
)

// Named fields
var (
	FieldTrimmer      = core.Field{Reg: RegVendorClockCntrl, Mask: 0x1F000000, Shift: 24}
	FieldTapValue     = core.Field{Reg: RegVendorClockCntrl, Mask: 0x00FF0000, Shift: 16}
	FieldVrefSel      = core.Field{Reg: RegSDMemCompPadCtrl, Mask: PadVrefSelMask, Shift: 0}
	FieldAutoCalPU    = core.Field{Reg: RegAutoCalConfig, Mask: AutoCalPUOffsetMask, Shift: 0}
	FieldAutoCalPD    = core.Field{Reg: RegAutoCalConfig, Mask: AutoCalPDOffsetMask, Shift: 8}
	FieldDataTimeout  = core.Field{Reg: RegTimeoutControl, Mask: TimeoutDataMask, Shift: 0}
	FieldVoltage      = core.Field{Reg: RegPowerControl, Mask: PowerVoltageMask, Shift: 1}
	FieldDQSTrim      = core.Field{Reg: RegVendorCapOverride, Mask: 0x3F00, Shift: 8}
	FieldClockDivider = core.Field{Reg: RegClockControl, Mask: ClockDividerMask, Shift: 6}
)

// Trim values
const (
	TrimmerValue  = 0x08
	DQSTrimValue  = 0x28
	VoltageSel1V8 = 0x5
	VoltageSel3V3 = 0x7

	// TapValueHS400 stands in until a tuning procedure supplies the real tap.
	TapValueHS400 = 1
)

// Pad control register of the APB_MISC block. It sits outside the SDMMC
// block; the auto-calibration fallback drives it directly.
const (
	APBMiscBase = 0x70000000
)

var (
	RegEMMC4PadCfgPadCtrl = core.Register{Name: "APB_MISC_GP_EMMC4_PAD_CFGPADCTRL", Offset: 0xAB4, Width: core.Width32}

	FieldPadDrvUp = core.Field{Reg: RegEMMC4PadCfgPadCtrl, Mask: 0x3F00, Shift: 8}
	FieldPadDrvDn = core.Field{Reg: RegEMMC4PadCfgPadCtrl, Mask: 0x00FC, Shift: 2}
)

const (
	PadDrvUpFallback = 0x10
	PadDrvDnFallback = 0x10
)

// Stage budgets and settle delays, in microseconds
const (
	ResetSettleUS    = 5000
	AutoCalSettleUS  = 1000
	AutoCalGraceUS   = 1
	AutoCalTimeoutUS = 10000
	ClockStableUS    = 2000000
	DLLCalibrateUS   = 5000
	DLLFinalizeUS    = 10000
)
