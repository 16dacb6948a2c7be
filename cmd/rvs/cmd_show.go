package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rvs-vcs/rvs/pkg/object"
	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [commit-ish]",
		Short: "Show commit metadata and changed files",
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
				return fmt.Errorf("show: read commit %s: %w", h, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "commit %s\n", h)
			fmt.Fprintf(out, "Author: %s <%s>\n", commit.Author.Name, commit.Author.Email)
			fmt.Fprintf(out, "Date:   %s\n", time.Unix(commit.Author.Seconds, 0).Format("2006-01-02 15:04:05"))
			fmt.Fprintln(out)
			fmt.Fprintf(out, "    %s\n", commit.Message)
			fmt.Fprintln(out)

			var parentTree object.Hash
			if len(commit.Parents) > 0 {
				if parent, err := r.Store.ReadCommit(commit.Parents[0]); err == nil {
					parentTree = parent.TreeHash
				}
			}

			changes, err := r.DiffTree(parentTree, commit.TreeHash)
			if err != nil {
				return fmt.Errorf("show: diff tree: %w", err)
			}
			if len(changes) == 0 {
				return nil
			}

			fmt.Fprintln(out, "Changes:")
			for _, c := range changes {
				fmt.Fprintf(out, "  %s %s\n", c.Status, c.Path)
			}
			return nil
		},
	}
}

func resolveCommitish(r *repo.Repo, target string) (object.Hash, error) {
	if resolved, err := r.ResolveRef(target); err == nil {
		return resolved, nil
	}
	h := object.Hash(filepath.ToSlash(strings.TrimSpace(target)))
	if h == "" {
		return "", fmt.Errorf("show: empty commit-ish")
	}
	if _, err := r.Store.ReadCommit(h); err != nil {
		return "", fmt.Errorf("show: unknown ref or commit %q", target)
	}
	return h, nil
}
