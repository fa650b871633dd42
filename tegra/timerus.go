package tegra

import "mmcinit/core"

// TIMERUS block. CNTR_1US free-runs at 1 MHz from power-on.
const (
	TimerUSBase = 0x60005010

	timerUSCntr = 0x0
)

var regTimerUSCntr = core.Register{Name: "TIMERUS_CNTR_1US", Offset: timerUSCntr, Width: core.Width32}

// TimerUS is the SoC microsecond counter as a core.TimeSource.
type TimerUS struct {
	regs core.Block
}

// NewTimerUS returns the counter at TimerUSBase on bus.
func NewTimerUS(bus core.Bus) *TimerUS {
	return &TimerUS{regs: core.NewBlock(bus, TimerUSBase)}
}

func (t *TimerUS) Now() uint32 {
	return t.regs.Read(regTimerUSCntr)
}

// ElapsedSince is wrap-safe: subtraction is modulo 2^32.
func (t *TimerUS) ElapsedSince(start uint32) uint32 {
	return t.Now() - start
}
