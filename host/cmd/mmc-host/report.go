package main

import (
	"fmt"
	"io"

	"mmcinit/core"
	"mmcinit/sdmmc"
	"mmcinit/sim"
	"mmcinit/tegra"
)

// lineSink prints each message as "source: msg".
func lineSink(w io.Writer) core.Sink {
	return core.NewWriterSink(func(s string) {
		fmt.Fprintln(w, s)
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func report(w io.Writer, ctrl sdmmc.Controller, res sdmmc.Result) {
	if res.Ready() {
		fmt.Fprintf(w, "%s: ready in %d us\n", ctrl, res.Elapsed)
	} else {
		fmt.Fprintf(w, "%s: failed at %s after %d us: %v\n", ctrl, res.Stage, res.Elapsed, res.Err())
	}
	s := res.Summary
	fmt.Fprintf(w, "  mode %s, %s, %d-bit, caps 0x%08X, tap %d\n", s.Mode, s.Voltage, s.BusWidth, s.Capabilities, s.TapValue)
	fmt.Fprintf(w, "  auto-calibration fallback: %s, dll calibrated: %s\n", yesNo(s.AutoCalFallback), yesNo(s.DLLCalibrated))
	if len(res.Timings) == 0 {
		return
	}
	fmt.Fprintln(w, "  stages:")
	for _, t := range res.Timings {
		mark := ""
		if t.Failed {
			mark = "  FAILED"
		}
		fmt.Fprintf(w, "    %-20s %8d us  +%d%s\n", t.Stage, t.Duration, t.Start, mark)
	}
}

// dumpTrace prints the simulated bus transactions, leaving out counter
// samples.
func dumpTrace(w io.Writer, trace []sim.Access) {
	for _, a := range trace {
		if a.Addr == tegra.TimerUSBase && a.Op == sim.OpRead {
			continue
		}
		fmt.Fprintf(w, "%s%-2d 0x%08X = 0x%08X", a.Op, a.Width, a.Addr, a.Value)
		if a.Repeat > 1 {
			fmt.Fprintf(w, " x%d", a.Repeat)
		}
		fmt.Fprintln(w)
	}
}
