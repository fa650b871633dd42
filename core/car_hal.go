package core

// PeripheralID identifies a clocked peripheral to the clock/reset controller.
type PeripheralID uint8

// ClockSource selects one of a peripheral's clock mux inputs.
type ClockSource uint8

// ClockResetController is the abstract clock-and-reset interface that core
// code uses. All operations are synchronous and always succeed; the hardware
// guarantees them.
type ClockResetController interface {
	// AssertReset holds the peripheral in reset.
	AssertReset(target PeripheralID)

	// ReleaseReset takes the peripheral out of reset.
	ReleaseReset(target PeripheralID)

	// SelectClockSource routes source to the peripheral with the given
	// divisor field value (0 is unity on every mux this module drives).
	SelectClockSource(target PeripheralID, source ClockSource, divisor uint32)

	// EnableClock ungates the peripheral's clock.
	EnableClock(target PeripheralID)
}
