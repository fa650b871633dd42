package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mmcinit/core"
	"mmcinit/host/devmem"
	"mmcinit/host/timeline"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

func newRunCmd(opts *options) *cobra.Command {
	var profile, mode, png string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bring up a controller on the target",
		Long:  "Ask the target monitor to run the bring-up sequencer and replay its messages.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cfg, err := opts.resolve(profile, mode)
			if err != nil {
				return err
			}
			c, err := opts.dial(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			res, err := c.BringUp(ctrl, cfg, lineSink(out))
			if err != nil {
				return err
			}
			report(out, ctrl, res)
			if png != "" {
				if err := timeline.SavePNG(png, res, ctrl.String()); err != nil {
					return fmt.Errorf("write timeline: %w", err)
				}
			}
			return res.Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&profile, "profile", "p", "emmc", "bring-up profile")
	fl.StringVarP(&mode, "mode", "m", "", "override the profile's mode (standard, hs400)")
	fl.StringVar(&png, "timeline", "", "write a PNG timeline of the run")
	return cmd
}

func newDriveCmd(opts *options) *cobra.Command {
	var profile, mode, mem string

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Run the sequencer on the host against real registers",
		Long: "Run the bring-up sequencer on this machine. Registers are reached through the " +
			"target monitor (one round trip per access) or, with --devmem, mapped from /dev/mem.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cfg, err := opts.resolve(profile, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if mem != "" {
				bus, err := devmem.OpenSoC(mem)
				if err != nil {
					return err
				}
				defer bus.Close()
				// Terminal writes must not stretch the poll loops, which
				// run against the real TIMERUS here.
				logs := core.NewAsyncSink(func(s string) { fmt.Fprintln(out, s) }, 256)
				res := sdmmc.BringUp(sdmmc.NewHandle(bus, ctrl), cfg, tegra.NewCAR(bus), tegra.NewTimerUS(bus), logs)
				logs.Close()
				if n := logs.Dropped(); n > 0 {
					fmt.Fprintf(out, "(%d log lines dropped)\n", n)
				}
				report(out, ctrl, res)
				return res.Err()
			}

			c, err := opts.dial(opts)
			if err != nil {
				return err
			}
			defer c.Close()
			res := sdmmc.BringUp(sdmmc.NewHandle(c, ctrl), cfg, tegra.NewCAR(c), c, lineSink(out))
			if err := c.Err(); err != nil {
				return fmt.Errorf("link failed during bring-up: %w", err)
			}
			report(out, ctrl, res)
			return res.Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&profile, "profile", "p", "emmc", "bring-up profile")
	fl.StringVarP(&mode, "mode", "m", "", "override the profile's mode (standard, hs400)")
	fl.StringVar(&mem, "devmem", "", "map registers from this device (e.g. "+devmem.DefaultPath+") instead of using the monitor")
	return cmd
}

func widthFlag(bits int) (core.Width, error) {
	switch bits {
	case 8:
		return core.Width8, nil
	case 16:
		return core.Width16, nil
	case 32:
		return core.Width32, nil
	}
	return 0, fmt.Errorf("width must be 8, 16 or 32, got %d", bits)
}

func newPeekCmd(opts *options) *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   "peek ADDR",
		Short: "Read a register on the target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := widthFlag(bits)
			if err != nil {
				return err
			}
			addr, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			c, err := opts.dial(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			v, err := c.ReadMem(uintptr(addr), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%08X: 0x%0*X\n", addr, int(w)/4, v)
			return nil
		},
	}
	cmd.Flags().IntVarP(&bits, "width", "w", 32, "access width in bits")
	return cmd
}

func newPokeCmd(opts *options) *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   "poke ADDR VALUE",
		Short: "Write a register on the target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := widthFlag(bits)
			if err != nil {
				return err
			}
			addr, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			val, err := parseUint32(args[1])
			if err != nil {
				return err
			}
			c, err := opts.dial(opts)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.WriteMem(uintptr(addr), w, val)
		},
	}
	cmd.Flags().IntVarP(&bits, "width", "w", 32, "access width in bits")
	return cmd
}
