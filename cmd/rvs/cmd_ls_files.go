package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-files",
		Short: "Print the sorted paths currently in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			paths, err := r.ListFiles()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}
