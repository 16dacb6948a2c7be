package main

import (
	"fmt"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsTreeCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree <rev>",
		Short: "List the entries of a tree at the given revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h, err := resolveCommitish(r, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			commit, err := r.Store.ReadCommit(h)
			if err != nil {
				return fmt.Errorf("ls-tree: read commit %s: %w", h, err)
			}

			entries, err := r.ListTree(commit.TreeHash, recursive)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				kind := "blob"
				if e.IsDir {
					kind = "tree"
				}
				fmt.Fprintf(out, "%s %s %s\t%s\n", e.Mode, kind, e.Hash, e.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recurse", "r", false, "recurse into subdirectories")

	return cmd
}
