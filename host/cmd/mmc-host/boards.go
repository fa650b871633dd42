package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBoardsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List bring-up profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := opts.loadProfiles()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range ps.Names() {
				p, _ := ps.Find(name)
				removable := "removable"
				if p.NonRemovable != nil && *p.NonRemovable {
					removable = "non-removable"
				}
				fmt.Fprintf(out, "%-14s %-7s %-8s %d-bit %-5s %-13s %s\n",
					p.Name, p.Controller, p.Mode, p.BusWidth, p.Voltage, removable, p.Description)
			}
			return nil
		},
	}
}
