package sim

import (
	"mmcinit/core"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

// Board wires a simulated bus, clock, CAR and all four controllers the way
// the SoC lays them out.
type Board struct {
	Bus         *Bus
	Clock       *Clock
	CAR         *tegra.CAR
	Controllers [sdmmc.NumControllers]*SDMMC
}

// NewBoard returns a healthy board whose clock advances step microseconds
// per sample. TIMERUS_CNTR_1US on the bus follows the clock.
func NewBoard(step uint32) *Board {
	b := &Board{
		Bus:   NewBus(),
		Clock: NewClock(step),
	}
	b.CAR = tegra.NewCAR(b.Bus)
	for i := range b.Controllers {
		b.Controllers[i] = NewSDMMC(b.Bus, sdmmc.Controller(i), Faults{})
	}
	b.Bus.OnRead(tegra.TimerUSBase, func() {
		b.Bus.Poke(tegra.TimerUSBase, core.Width32, b.Clock.Now())
	})
	return b
}

// Inject sets the fault set of one controller.
func (b *Board) Inject(ctrl sdmmc.Controller, f Faults) {
	b.Controllers[ctrl].SetFaults(f)
}

// Handle returns a handle for ctrl on the board's bus.
func (b *Board) Handle(ctrl sdmmc.Controller) sdmmc.Handle {
	return sdmmc.NewHandle(b.Bus, ctrl)
}

// Timer returns the SoC microsecond counter as seen over the bus.
func (b *Board) Timer() *tegra.TimerUS {
	return tegra.NewTimerUS(b.Bus)
}
