package tegra_test

import (
	"testing"

	"mmcinit/core"
	"mmcinit/sim"
	"mmcinit/tegra"
)

func TestTimerUSReadsCounter(t *testing.T) {
	bus := sim.NewBus()
	timer := tegra.NewTimerUS(bus)

	bus.Poke(tegra.TimerUSBase, core.Width32, 1234)
	if got := timer.Now(); got != 1234 {
		t.Errorf("Expected 1234, got %d", got)
	}
}

func TestTimerUSElapsedAcrossWrap(t *testing.T) {
	bus := sim.NewBus()
	timer := tegra.NewTimerUS(bus)

	start := uint32(0xFFFFFFF0)
	bus.Poke(tegra.TimerUSBase, core.Width32, 0x00000010)
	if got := timer.ElapsedSince(start); got != 0x20 {
		t.Errorf("Expected 32 us across the wrap, got %d", got)
	}
}

func TestTimerUSOnBoard(t *testing.T) {
	b := sim.NewBoard(25)
	timer := b.Timer()

	start := timer.Now()
	core.Delay(timer, 1000)
	if got := b.Clock.Peek() - start; got < 1000 {
		t.Errorf("Expected delay of at least 1000 us, got %d", got)
	}
}
