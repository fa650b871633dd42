package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mmcinit/host/timeline"
	"mmcinit/sdmmc"
	"mmcinit/sim"
)

func newSimCmd(opts *options) *cobra.Command {
	var (
		profile string
		mode    string
		faults  []string
		step    uint32
		trace   bool
		png     string
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a bring-up against the simulated SoC",
		Long: "Run the bring-up sequencer against a register-level model of the SoC. " +
			"Faults can be injected to exercise timeout and fallback paths.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cfg, err := opts.resolve(profile, mode)
			if err != nil {
				return err
			}
			f, err := sim.ParseFaults(faults...)
			if err != nil {
				return err
			}

			b := sim.NewBoard(step)
			b.Inject(ctrl, f)
			b.Bus.ResetTrace()

			out := cmd.OutOrStdout()
			res := sdmmc.BringUp(b.Handle(ctrl), cfg, b.CAR, b.Timer(), lineSink(out))
			report(out, ctrl, res)
			if trace {
				fmt.Fprintln(out, "bus trace:")
				dumpTrace(out, b.Bus.Trace())
			}
			if png != "" {
				if err := timeline.SavePNG(png, res, ctrl.String()+" (sim)"); err != nil {
					return fmt.Errorf("write timeline: %w", err)
				}
			}
			return res.Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&profile, "profile", "p", "emmc", "bring-up profile")
	fl.StringVarP(&mode, "mode", "m", "", "override the profile's mode (standard, hs400)")
	fl.StringSliceVarP(&faults, "fault", "f", nil, "inject faults: "+strings.Join(sim.FaultNames(), ", "))
	fl.Uint32Var(&step, "step", 10, "simulated microseconds per timer read")
	fl.BoolVar(&trace, "trace", false, "print every register access")
	fl.StringVar(&png, "timeline", "", "write a PNG timeline of the run")
	return cmd
}
