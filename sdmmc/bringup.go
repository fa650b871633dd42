// Package sdmmc brings a Tegra X1 SDMMC host controller from reset to a
// clocked, data-ready state.
//
// The sequence is a fixed progression of register read-modify-writes and
// bounded status polls. Each poll owns its own budget; a stuck bit fails the
// run at that stage instead of hanging the caller. Auto-calibration is the
// one recoverable stage: on timeout the pads are driven with fixed strengths
// and the run continues.
package sdmmc

import (
	"mmcinit/core"
	"mmcinit/tegra"
)

// stage is one entry of the bring-up plan.
type stage struct {
	id   Stage
	run  func(*sequencer) error
	when func(Config) bool // nil means always
}

var plan = []stage{
	{id: StageResetClock, run: (*sequencer).resetClock},
	{id: StagePadTrim, run: (*sequencer).padTrim},
	{id: StageAutoCal, run: (*sequencer).autoCalibrate},
	{id: StageClockStabilization, run: (*sequencer).stabilizeClock},
	{id: StageHostVersion, run: (*sequencer).selectHostVersion},
	{id: StageCapabilityCheck, run: (*sequencer).checkCapabilities},
	{id: StageTransferMode, run: (*sequencer).resetTransferMode},
	{id: StagePowerRail, run: (*sequencer).powerRail},
	{id: StageTapTrim, run: (*sequencer).trimTap},
	{id: StageDLLCalibrate, run: (*sequencer).calibrateDLL, when: Config.Tuning},
	{id: StageCardClock, run: (*sequencer).enableCardClock},
}

type sequencer struct {
	h       Handle
	cfg     Config
	regs    core.Block
	clk     core.ClockResetController
	ts      core.TimeSource
	log     core.Sink
	source  string
	summary Summary
}

// BringUp runs the full initialization sequence on h. It never returns early
// with the controller half-configured silently: a failure is reported in the
// Result with the stage it happened in, and every stage transition, poll and
// timeout has been emitted to log by then.
//
// BringUp has no state outside its arguments; running it again on the same
// controller repeats the whole sequence from reset.
func BringUp(h Handle, cfg Config, clk core.ClockResetController, ts core.TimeSource, log core.Sink) Result {
	if log == nil {
		log = core.NopSink
	}
	s := &sequencer{
		h:      h,
		cfg:    cfg,
		regs:   h.Regs(),
		clk:    clk,
		ts:     ts,
		log:    log,
		source: h.Name(),
		summary: Summary{
			Mode:     cfg.Mode,
			Voltage:  cfg.Voltage,
			BusWidth: cfg.BusWidth,
		},
	}

	start := ts.Now()
	s.emit("initializing in " + cfg.Mode.String() + " mode...")

	var timings []StageTiming
	for _, st := range plan {
		if st.when != nil && !st.when(cfg) {
			s.emit(st.id.String() + ": skipped in " + cfg.Mode.String() + " mode")
			continue
		}
		begin := ts.ElapsedSince(start)
		s.emit("stage " + st.id.String())
		err := st.run(s)
		end := ts.ElapsedSince(start)
		timing := StageTiming{Stage: st.id, Start: begin, Duration: end - begin}
		if err != nil {
			// a plan stage can fail in a later sub-stage (dll-finalize)
			se := err.(*StageError)
			timing.Stage = se.Stage
			timing.Failed = true
			timings = append(timings, timing)
			s.emit("bring-up failed at " + se.Stage.String() + " after " + core.Utoa(end) + " us total")
			return Result{
				Status:  StatusFailed,
				Stage:   se.Stage,
				Reason:  se.Err.Error(),
				Elapsed: end,
				Summary: s.summary,
				Timings: timings,
				err:     se,
			}
		}
		timings = append(timings, timing)
	}

	total := ts.ElapsedSince(start)
	s.emit("initialized in " + core.Utoa(total) + " us.")
	return Result{
		Status:  StatusReady,
		Elapsed: total,
		Summary: s.summary,
		Timings: timings,
	}
}

func (s *sequencer) emit(msg string) {
	s.log.Emit(s.source, msg)
}

func (s *sequencer) timeout(stage Stage, what string, elapsed uint32) error {
	s.emit(what + " timed out after " + core.Utoa(elapsed) + " us")
	return &StageError{Stage: stage, Elapsed: elapsed, Err: ErrTimeout}
}

// resetClock holds the block in reset while its clock is routed and
// ungated, lets it settle, then releases it. It cannot fail.
func (s *sequencer) resetClock() error {
	p := s.h.Controller().Peripheral()
	s.clk.AssertReset(p)
	s.clk.SelectClockSource(p, tegra.ClockSourcePLLPOut0, tegra.ClockDividerUnity)
	s.clk.EnableClock(p)
	core.Delay(s.ts, ResetSettleUS)
	s.clk.ReleaseReset(p)
	return nil
}

func (s *sequencer) padTrim() error {
	s.regs.SetBits(RegIOSpare, IOSpareOneCycleDelay)
	s.regs.ClearBits(RegVendorIOTrimCntrl, IOTrimSelVreg)
	s.regs.WriteField(FieldTrimmer, TrimmerValue)
	s.regs.WriteField(FieldVrefSel, PadVrefSelValue)
	return nil
}

func (s *sequencer) autoCalibrate() error {
	s.regs.WriteField(FieldAutoCalPU, AutoCalOffsetValue)
	s.regs.WriteField(FieldAutoCalPD, AutoCalOffsetValue)

	// Soldered-down parts keep the pad input powered down during
	// calibration.
	if s.cfg.NonRemovable {
		s.regs.SetBits(RegSDMemCompPadCtrl, PadEInputPowerDn)
	}
	core.Delay(s.ts, AutoCalSettleUS)

	s.regs.SetBits(RegAutoCalConfig, AutoCalStart|AutoCalEnable)
	core.Delay(s.ts, AutoCalGraceUS)

	s.emit("waiting for auto-calibration...")
	ok, elapsed := core.PollUntil(s.ts, AutoCalTimeoutUS, func() bool {
		return !s.regs.HasBits(RegAutoCalStatus, AutoCalActive)
	})
	if ok {
		s.emit("auto-calibration complete after " + core.Utoa(elapsed) + " us.")
	} else {
		s.emit("auto-calibration timed out after " + core.Utoa(elapsed) + " us, using fixed pad drive")
		s.h.pad.WriteField(FieldPadDrvUp, PadDrvUpFallback)
		s.h.pad.WriteField(FieldPadDrvDn, PadDrvDnFallback)
		s.regs.ClearBits(RegAutoCalConfig, AutoCalEnable)
		s.summary.AutoCalFallback = true
	}

	if s.cfg.NonRemovable {
		s.regs.ClearBits(RegSDMemCompPadCtrl, PadEInputPowerDn)
	}
	return nil
}

func (s *sequencer) stabilizeClock() error {
	s.regs.SetBits(RegClockControl, ClockIntEnable)

	s.emit("waiting for internal clock to stabilize...")
	ok, elapsed := core.PollUntil(s.ts, ClockStableUS, func() bool {
		return s.regs.HasBits(RegClockControl, ClockIntStable)
	})
	if !ok {
		return s.timeout(StageClockStabilization, "internal clock", elapsed)
	}
	s.emit("clock stabilized after " + core.Utoa(elapsed) + " us.")
	return nil
}

func (s *sequencer) selectHostVersion() error {
	s.regs.ClearBits(RegHostControl2, HostCtrl2Reserved)
	s.regs.ClearBits(RegClockControl, ClockProgClockMode)
	s.regs.SetBits(RegHostControl2, HostCtrl2HostV4)
	return nil
}

func (s *sequencer) checkCapabilities() error {
	caps := s.regs.Read(RegCapabilities)
	s.summary.Capabilities = caps
	if caps&CapCan64Bit == 0 {
		s.emit("missing 64-bit addressing capability (caps " + core.Hex32(caps) + ")")
		return &StageError{Stage: StageCapabilityCheck, Err: ErrMissingCapability}
	}
	s.regs.SetBits(RegHostControl2, HostCtrl2Addr64)
	return nil
}

// resetTransferMode leaves the controller in PIO, 1-bit, normal speed,
// signalling voltage unlatched. The caller negotiates width and speed with
// the card later.
func (s *sequencer) resetTransferMode() error {
	s.regs.ClearBits(RegHostControl, HostCtrlDMAMask)
	s.regs.WriteField(FieldDataTimeout, TimeoutDataMax)
	s.regs.ClearBits(RegHostControl, HostCtrl4BitBus)
	s.regs.ClearBits(RegHostControl, HostCtrl8BitBus)
	s.regs.ClearBits(RegHostControl, HostCtrlHiSpeed)
	s.regs.ClearBits(RegHostControl2, HostCtrl2VDD180)
	return nil
}

func (s *sequencer) powerRail() error {
	s.regs.WriteField(FieldVoltage, 0)
	s.regs.WriteField(FieldVoltage, s.cfg.Voltage.selector())
	s.regs.SetBits(RegPowerControl, PowerOn)
	return nil
}

func (s *sequencer) trimTap() error {
	var tap uint32
	if s.cfg.Tuning() {
		s.regs.WriteField(FieldDQSTrim, DQSTrimValue)
		tap = TapValueHS400
	}
	s.regs.ClearBits(RegVendorTuning0, TuningTapUpdatedByHW)
	s.regs.WriteField(FieldTapValue, tap)
	s.regs.ClearBits(RegHostControl, HostCtrlHiSpeed)
	s.regs.WriteField(FieldClockDivider, 0)
	s.summary.TapValue = tap
	return nil
}

func (s *sequencer) calibrateDLL() error {
	s.regs.SetBits(RegVendorDLLCalCfg, DLLCalCalibrate)

	s.emit("waiting for dll calibration...")
	ok, elapsed := core.PollUntil(s.ts, DLLCalibrateUS, func() bool {
		return !s.regs.HasBits(RegVendorDLLCalCfg, DLLCalCalibrate)
	})
	if !ok {
		return s.timeout(StageDLLCalibrate, "dll calibration", elapsed)
	}
	s.emit("dll calibration okay after " + core.Utoa(elapsed) + " us.")

	s.emit("waiting for dll calibration to finalize...")
	ok, elapsed = core.PollUntil(s.ts, DLLFinalizeUS, func() bool {
		return !s.regs.HasBits(RegVendorDLLCalSta, DLLCalActive)
	})
	if !ok {
		return s.timeout(StageDLLFinalize, "dll finalize", elapsed)
	}
	s.emit("dll calibration complete after " + core.Utoa(elapsed) + " us.")
	s.summary.DLLCalibrated = true
	return nil
}

func (s *sequencer) enableCardClock() error {
	s.regs.SetBits(RegClockControl, ClockCardEnable)
	return nil
}
