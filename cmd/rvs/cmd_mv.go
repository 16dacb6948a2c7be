package main

import (
	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newMvCmd() *cobra.Command {
	var force, skipErrors, dryRun, verbose bool

	cmd := &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Move or rename a tracked file and update the index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.Move(args[0], args[1], repo.MoveOptions{
				Force:      force,
				SkipErrors: skipErrors,
				DryRun:     dryRun,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing destination")
	cmd.Flags().BoolVarP(&skipErrors, "skip-errors", "k", false, "skip move errors instead of aborting")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be moved")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "be verbose")

	return cmd
}
