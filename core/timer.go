package core

// TimeSource is a monotonic tick counter. Ticks wrap at 32 bits; elapsed
// arithmetic is modular so a wrap inside a poll window is harmless.
type TimeSource interface {
	// Now returns the current tick count, one tick per microsecond.
	Now() uint32

	// ElapsedSince returns the microseconds elapsed since start.
	ElapsedSince(start uint32) uint32
}

// Delay busy-waits for at least us microseconds. It is a hard sleep: there
// is no early exit and nothing is polled.
func Delay(ts TimeSource, us uint32) {
	start := ts.Now()
	for ts.ElapsedSince(start) < us {
	}
}

// PollUntil re-samples done and the elapsed time until done reports true or
// more than timeoutUS microseconds have passed since the call. The budget is
// created here and never shared between polls. It returns whether done was
// satisfied and the elapsed time at the moment the loop resolved.
func PollUntil(ts TimeSource, timeoutUS uint32, done func() bool) (bool, uint32) {
	start := ts.Now()
	for {
		if done() {
			return true, ts.ElapsedSince(start)
		}
		if elapsed := ts.ElapsedSince(start); elapsed > timeoutUS {
			return false, elapsed
		}
	}
}
