package sdmmc

import (
	"errors"

	"mmcinit/core"
)

// Stage names a step of the bring-up sequence.
type Stage uint8

const (
	StageNone Stage = iota
	StageResetClock
	StagePadTrim
	StageAutoCal
	StageClockStabilization
	StageHostVersion
	StageCapabilityCheck
	StageTransferMode
	StagePowerRail
	StageTapTrim
	StageDLLCalibrate
	StageDLLFinalize
	StageCardClock
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageResetClock:
		return "reset-clock"
	case StagePadTrim:
		return "pad-trim"
	case StageAutoCal:
		return "auto-calibration"
	case StageClockStabilization:
		return "clock-stabilization"
	case StageHostVersion:
		return "host-version"
	case StageCapabilityCheck:
		return "capability-check"
	case StageTransferMode:
		return "transfer-mode"
	case StagePowerRail:
		return "power-rail"
	case StageTapTrim:
		return "tap-trim"
	case StageDLLCalibrate:
		return "dll-calibrate"
	case StageDLLFinalize:
		return "dll-finalize"
	case StageCardClock:
		return "card-clock"
	}
	return "stage-" + core.Utoa(uint32(s))
}

// Status is the overall outcome of a bring-up.
type Status uint8

const (
	StatusFailed Status = iota
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "failed"
}

var (
	// ErrTimeout means a status bit never reached its expected state within
	// the stage's budget.
	ErrTimeout = errors.New("timed out")

	// ErrMissingCapability means the controller lacks a feature bring-up
	// depends on.
	ErrMissingCapability = errors.New("missing required capability")
)

// StageError is the error form of a failed Result.
type StageError struct {
	Stage   Stage
	Elapsed uint32 // microseconds spent in the failing poll, 0 if none
	Err     error
}

func (e *StageError) Error() string {
	msg := "sdmmc: " + e.Stage.String() + ": " + e.Err.Error()
	if e.Err == ErrTimeout && e.Elapsed > 0 {
		msg += " after " + core.Utoa(e.Elapsed) + " us"
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Summary captures what the run configured.
type Summary struct {
	Capabilities    uint32
	Mode            Mode
	Voltage         Voltage
	BusWidth        uint8
	TapValue        uint32
	AutoCalFallback bool
	DLLCalibrated   bool
}

// StageTiming records when a stage started (relative to the run) and how
// long it took, both in microseconds.
type StageTiming struct {
	Stage    Stage
	Start    uint32
	Duration uint32
	Failed   bool
}

// Result is the outcome of one BringUp call.
type Result struct {
	Status  Status
	Stage   Stage // failing stage; StageNone when Ready
	Reason  string
	Elapsed uint32 // whole run, microseconds
	Summary Summary
	Timings []StageTiming
	err     *StageError
}

// Ready reports whether the controller reached the clocked, data-ready state.
func (r Result) Ready() bool {
	return r.Status == StatusReady
}

// Err returns nil for a ready controller and a *StageError otherwise.
func (r Result) Err() error {
	if r.Status == StatusReady {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return &StageError{Stage: r.Stage, Err: errors.New(r.Reason)}
}

// FailedResult rebuilds a failed Result from its wire form. The cause is
// reconstructed from the stage: capability-check failures are
// ErrMissingCapability, every other fatal stage is a timeout.
func FailedResult(stage Stage, elapsed uint32, summary Summary) Result {
	cause := ErrTimeout
	if stage == StageCapabilityCheck {
		cause = ErrMissingCapability
	}
	se := &StageError{Stage: stage, Err: cause}
	return Result{
		Status:  StatusFailed,
		Stage:   stage,
		Reason:  cause.Error(),
		Elapsed: elapsed,
		Summary: summary,
		err:     se,
	}
}
