package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newRebaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebase <upstream>",
		Short: "Replay the current branch's commits onto upstream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			report, err := r.Rebase(args[0])
			out := cmd.OutOrStdout()
			if err != nil {
				if report != nil && report.ConflictedAt != "" {
					fmt.Fprintf(out, "CONFLICT: could not apply %s\n", report.ConflictedAt)
				}
				return err
			}

			fmt.Fprintf(out, "rebased %d commit(s)\n", len(report.Replayed))
			return nil
		},
	}
}
