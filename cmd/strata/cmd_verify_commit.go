package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-commit [commit-ish]",
		Short: "Verify the SSH signature of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			target := "HEAD"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				target = strings.TrimSpace(args[0])
			}

			h, err := resolveCommitish(r, target)
			if err != nil {
				return err
			}
			commit, err := r.Store.ReadCommit(h)
			if err != nil {
				return fmt.Errorf("read commit %s: %w", h, err)
			}

			if commit.Signature == "" {
				return fmt.Errorf("commit %s is not signed", h)
			}

			payload := object.CommitSigningPayload(commit)
			pub, err := verifyCommitSignature(commit.Signature, payload)
			if err != nil {
				return fmt.Errorf("verify commit %s: %w", h, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "good signature on %s (%s key)\n", h, pub.Type())
			return nil
		},
	}
}
