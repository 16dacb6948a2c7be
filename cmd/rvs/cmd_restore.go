package main

import (
	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	var source string
	var staged bool

	cmd := &cobra.Command{
		Use:   "restore <paths>...",
		Short: "Restore working tree or index files from a revision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if staged {
				return r.RestorePaths(source, args, true, false)
			}
			return r.RestorePaths(source, args, true, true)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "revision to restore from (default HEAD)")
	cmd.Flags().BoolVar(&staged, "staged", false, "restore only the index (without it, both the index and the working tree are restored)")

	return cmd
}
