// Package tegra holds the clock-and-reset controller and microsecond timer
// of the Tegra X1 SoC, driven through a core.Bus.
package tegra

import "mmcinit/core"

// CAR (Clock And Reset controller) memory map
const (
	CARBase = 0x60006000

	carRstDevLSet = 0x300
	carRstDevLClr = 0x304
	carRstDevUSet = 0x308
	carRstDevUClr = 0x30C
	carClkEnbLSet = 0x320
	carClkEnbUSet = 0x328
)

// Peripherals driven by this package
const (
	PeriphSDMMC1 core.PeripheralID = iota + 1
	PeriphSDMMC2
	PeriphSDMMC3
	PeriphSDMMC4
)

// ClockSourcePLLPOut0 selects PLLP_OUT0 on the SDMMC muxes
// (CLK_SOURCE_SDMMCn[31:29]).
const ClockSourcePLLPOut0 core.ClockSource = 0

// ClockDividerUnity is the divisor field value for divide-by-one.
const ClockDividerUnity = 0

const (
	clkSourceShift = 29
	clkSourceMask  = 0xE0000000
	clkDivisorMask = 0x000000FF
)

// carBinding places one peripheral in the CAR: which device bank (L or U)
// carries its reset/enable bit and where its clock source register sits.
type carBinding struct {
	upper     bool
	bit       uint32
	clkSource uintptr
}

var carBindings = map[core.PeripheralID]carBinding{
	PeriphSDMMC1: {upper: false, bit: 14, clkSource: 0x150},
	PeriphSDMMC2: {upper: false, bit: 9, clkSource: 0x154},
	PeriphSDMMC3: {upper: true, bit: 5, clkSource: 0x1BC},
	PeriphSDMMC4: {upper: false, bit: 15, clkSource: 0x164},
}

// CAR drives the clock-and-reset controller through a Bus.
type CAR struct {
	regs core.Block
}

// NewCAR returns the controller at CARBase on bus.
func NewCAR(bus core.Bus) *CAR {
	return &CAR{regs: core.NewBlock(bus, CARBase)}
}

func (c *CAR) binding(target core.PeripheralID) carBinding {
	b, ok := carBindings[target]
	if !ok {
		panic("tegra: peripheral " + core.Utoa(uint32(target)) + " has no CAR binding")
	}
	return b
}

func reg32(name string, offset uintptr) core.Register {
	return core.Register{Name: name, Offset: offset, Width: core.Width32}
}

// The SET/CLR device registers are write-one-to-act; writing a single bit
// leaves every other peripheral untouched, so no read-modify-write.

func (c *CAR) AssertReset(target core.PeripheralID) {
	b := c.binding(target)
	if b.upper {
		c.regs.Write(reg32("RST_DEV_U_SET", carRstDevUSet), 1<<b.bit)
	} else {
		c.regs.Write(reg32("RST_DEV_L_SET", carRstDevLSet), 1<<b.bit)
	}
}

func (c *CAR) ReleaseReset(target core.PeripheralID) {
	b := c.binding(target)
	if b.upper {
		c.regs.Write(reg32("RST_DEV_U_CLR", carRstDevUClr), 1<<b.bit)
	} else {
		c.regs.Write(reg32("RST_DEV_L_CLR", carRstDevLClr), 1<<b.bit)
	}
}

func (c *CAR) EnableClock(target core.PeripheralID) {
	b := c.binding(target)
	if b.upper {
		c.regs.Write(reg32("CLK_ENB_U_SET", carClkEnbUSet), 1<<b.bit)
	} else {
		c.regs.Write(reg32("CLK_ENB_L_SET", carClkEnbLSet), 1<<b.bit)
	}
}

// SelectClockSource programs the source and divisor fields of the
// peripheral's CLK_SOURCE register, preserving its other bits.
func (c *CAR) SelectClockSource(target core.PeripheralID, source core.ClockSource, divisor uint32) {
	r := reg32("CLK_SOURCE", c.binding(target).clkSource)
	c.regs.WriteField(core.Field{Reg: r, Mask: clkSourceMask, Shift: clkSourceShift}, uint32(source))
	c.regs.WriteField(core.Field{Reg: r, Mask: clkDivisorMask}, divisor)
}

// ClockSourceAddr returns the absolute address of target's CLK_SOURCE register.
func ClockSourceAddr(target core.PeripheralID) uintptr {
	return CARBase + carBindings[target].clkSource
}

// ResetRegs returns the RST_DEV SET and CLR register addresses of target and
// the bit mask that selects it in both.
func ResetRegs(target core.PeripheralID) (set, clr uintptr, mask uint32) {
	b, ok := carBindings[target]
	if !ok {
		return 0, 0, 0
	}
	if b.upper {
		return CARBase + carRstDevUSet, CARBase + carRstDevUClr, 1 << b.bit
	}
	return CARBase + carRstDevLSet, CARBase + carRstDevLClr, 1 << b.bit
}

// ClockEnableReg returns the CLK_ENB SET register address of target and its
// bit mask.
func ClockEnableReg(target core.PeripheralID) (set uintptr, mask uint32) {
	b, ok := carBindings[target]
	if !ok {
		return 0, 0
	}
	if b.upper {
		return CARBase + carClkEnbUSet, 1 << b.bit
	}
	return CARBase + carClkEnbLSet, 1 << b.bit
}
