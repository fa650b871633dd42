package sdmmc

import (
	"mmcinit/core"
	"mmcinit/tegra"
)

// Controller selects one of the four SDMMC blocks.
type Controller uint8

const (
	SDMMC1 Controller = iota
	SDMMC2
	SDMMC3
	SDMMC4
)

// NumControllers is the number of SDMMC blocks on the SoC.
const NumControllers = 4

func (c Controller) String() string {
	switch c {
	case SDMMC1:
		return "sdmmc1"
	case SDMMC2:
		return "sdmmc2"
	case SDMMC3:
		return "sdmmc3"
	case SDMMC4:
		return "sdmmc4"
	}
	return "sdmmc?" + core.Utoa(uint32(c))
}

// Valid reports whether c names an existing block.
func (c Controller) Valid() bool {
	return c < NumControllers
}

// Base returns the physical base address of the controller's registers.
func (c Controller) Base() uintptr {
	return BlockBase + uintptr(c)*BlockStride
}

// Peripheral returns the clock/reset identity of the controller.
func (c Controller) Peripheral() core.PeripheralID {
	return tegra.PeriphSDMMC1 + core.PeripheralID(c)
}

// Handle binds one controller to the bus its registers are reached through.
type Handle struct {
	ctrl Controller
	regs core.Block
	pad  core.Block
}

// NewHandle returns a handle for ctrl on bus. It panics on a controller that
// does not exist.
func NewHandle(bus core.Bus, ctrl Controller) Handle {
	if !ctrl.Valid() {
		panic("sdmmc: no such controller " + ctrl.String())
	}
	return Handle{
		ctrl: ctrl,
		regs: core.NewBlock(bus, ctrl.Base()),
		pad:  core.NewBlock(bus, APBMiscBase),
	}
}

// Controller returns the controller the handle refers to.
func (h Handle) Controller() Controller {
	return h.ctrl
}

// Base returns the controller's register base address.
func (h Handle) Base() uintptr {
	return h.regs.Base()
}

// Regs returns the controller's register block.
func (h Handle) Regs() core.Block {
	return h.regs
}

// Name is the diagnostic source label of the controller.
func (h Handle) Name() string {
	switch h.ctrl {
	case SDMMC1:
		return "microSD"
	case SDMMC4:
		return "eMMC"
	}
	return h.ctrl.String()
}
