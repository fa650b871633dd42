package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"mmcinit/config"
	"mmcinit/core"
	"mmcinit/host/link"
)

var errQuit = errors.New("quit")

func newConsoleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive monitor session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := opts.loadProfiles()
			if err != nil {
				return err
			}
			c, err := opts.dial(opts)
			if err != nil {
				return err
			}
			defer c.Close()
			return runConsole(c, ps, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runConsole(c *link.Client, ps config.Profiles, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err == nil && len(args) > 0 {
			err = execLine(c, ps, args, out)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  peek ADDR [WIDTH]          read a register (width 8, 16 or 32)
  poke ADDR VALUE [WIDTH]    write a register
  clock                      read the target's microsecond counter
  bringup PROFILE [MODE]     run a bring-up on the target
  boards                     list profiles
  dict                       print the target's command dictionary
  quit
`)
}

// optWidth parses an optional trailing width argument.
func optWidth(args []string, i int) (core.Width, error) {
	if len(args) <= i {
		return core.Width32, nil
	}
	bits, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("bad width %q", args[i])
	}
	return widthFlag(bits)
}

func execLine(c *link.Client, ps config.Profiles, args []string, out io.Writer) error {
	switch args[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp(out)

	case "peek":
		if len(args) < 2 {
			return errors.New("usage: peek ADDR [WIDTH]")
		}
		addr, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		w, err := optWidth(args, 2)
		if err != nil {
			return err
		}
		v, err := c.ReadMem(uintptr(addr), w)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%08X: 0x%0*X\n", addr, int(w)/4, v)

	case "poke":
		if len(args) < 3 {
			return errors.New("usage: poke ADDR VALUE [WIDTH]")
		}
		addr, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		val, err := parseUint32(args[2])
		if err != nil {
			return err
		}
		w, err := optWidth(args, 3)
		if err != nil {
			return err
		}
		return c.WriteMem(uintptr(addr), w, val)

	case "clock":
		now, err := c.Clock()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d us\n", now)

	case "bringup":
		if len(args) < 2 {
			return errors.New("usage: bringup PROFILE [MODE]")
		}
		p, err := ps.Find(args[1])
		if err != nil {
			return err
		}
		if len(args) > 2 {
			p.Mode = args[2]
		}
		ctrl, cfg, err := p.Resolve()
		if err != nil {
			return err
		}
		res, err := c.BringUp(ctrl, cfg, lineSink(out))
		if err != nil {
			return err
		}
		report(out, ctrl, res)

	case "boards":
		for _, name := range ps.Names() {
			fmt.Fprintln(out, name)
		}

	case "dict":
		text, err := c.Identify()
		fmt.Fprint(out, text)
		return err

	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return nil
}
