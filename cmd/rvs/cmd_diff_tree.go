package main

import (
	"fmt"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffTreeCmd() *cobra.Command {
	var nameOnly bool
	var nameStatus bool
	var noCommitID bool

	cmd := &cobra.Command{
		Use:   "diff-tree <rev>",
		Short: "Compare a commit's tree against its first parent",
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
				return fmt.Errorf("diff-tree: read commit %s: %w", h, err)
			}

			var parentTree object.Hash
			if len(commit.Parents) > 0 {
				if parent, err := r.Store.ReadCommit(commit.Parents[0]); err == nil {
					parentTree = parent.TreeHash
				}
			}

			changes, err := r.DiffTree(parentTree, commit.TreeHash)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !noCommitID {
				fmt.Fprintln(out, h)
			}

			for _, c := range changes {
				switch {
				case nameOnly:
					fmt.Fprintln(out, c.Path)
				case nameStatus:
					fmt.Fprintf(out, "%s\t%s\n", c.Status, c.Path)
				default:
					fmt.Fprintf(out, ":%s %s %s\n", c.Status, hashOrZero(c.Before.BlobHash), hashOrZero(c.After.BlobHash))
					fmt.Fprintf(out, "\t%s\n", c.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "show only changed paths")
	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "show paths with their change status")
	cmd.Flags().BoolVar(&noCommitID, "no-commit-id", false, "omit the leading commit hash line")

	return cmd
}

func hashOrZero(h object.Hash) string {
	if h == "" {
		return strings.Repeat("0", 40)
	}
	return string(h)
}
