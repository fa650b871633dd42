package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mmcinit/config"
	"mmcinit/host/link"
	"mmcinit/host/serial"
	"mmcinit/sdmmc"
)

type options struct {
	device   string
	baud     int
	profiles string

	// dial opens the monitor link; tests replace it.
	dial func(o *options) (*link.Client, error)
}

func dialSerial(o *options) (*link.Client, error) {
	cfg := serial.DefaultConfig(o.device)
	cfg.Baud = o.baud
	return link.Dial(cfg)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{dial: dialSerial})
}

func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "mmc-host",
		Short:         "SDMMC controller bring-up tool",
		Long:          "Bring up Tegra X1 SDMMC controllers against the simulator, a target running the monitor, or /dev/mem.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.device, "device", "d", "/dev/ttyUSB0", "serial device of the target monitor")
	pf.IntVarP(&opts.baud, "baud", "b", serial.DefaultBaud, "serial baud rate")
	pf.StringVar(&opts.profiles, "profiles", "", "YAML file with extra bring-up profiles")

	root.AddCommand(
		newSimCmd(opts),
		newRunCmd(opts),
		newDriveCmd(opts),
		newPeekCmd(opts),
		newPokeCmd(opts),
		newConsoleCmd(opts),
		newBoardsCmd(opts),
	)
	return root
}

// loadProfiles returns the built-in table merged with --profiles.
func (o *options) loadProfiles() (config.Profiles, error) {
	ps := config.Builtin()
	if o.profiles == "" {
		return ps, nil
	}
	extra, err := config.LoadFile(o.profiles)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.profiles, err)
	}
	return ps.Merge(extra), nil
}

// resolve looks up a profile by name and applies the mode override.
func (o *options) resolve(name, mode string) (sdmmc.Controller, sdmmc.Config, error) {
	ps, err := o.loadProfiles()
	if err != nil {
		return 0, sdmmc.Config{}, err
	}
	p, err := ps.Find(name)
	if err != nil {
		return 0, sdmmc.Config{}, err
	}
	if mode != "" {
		p.Mode = mode
	}
	return p.Resolve()
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return uint32(v), nil
}
