package main

import (
	"fmt"

	"github.com/odvcencio/strata/pkg/repo"
	"github.com/spf13/cobra"
)

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify integrity of all objects reachable from refs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			report, err := r.Fsck()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, h := range report.Missing {
				fmt.Fprintf(out, "missing %s\n", h)
			}
			for _, h := range report.Corrupt {
				fmt.Fprintf(out, "corrupt %s\n", h)
			}
			if !report.Clean() {
				return fmt.Errorf(
					"fsck failed: %d missing, %d corrupt object(s)",
					len(report.Missing),
					len(report.Corrupt),
				)
			}

			fmt.Fprintf(out, "ok: verified %d reachable object(s)\n", len(report.Reachable))
			return nil
		},
	}
}
