package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch, forceDeleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [<name> [<start>]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if forceDeleteBranch != "" {
				if err := r.DeleteBranch(forceDeleteBranch, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", forceDeleteBranch)
				return nil
			}
			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch, false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			// Create mode: branch [<name> [<start>]].
			if len(args) >= 1 {
				start := "HEAD"
				if len(args) == 2 {
					start = args[1]
				}
				startHash, err := r.ResolveRevision(start)
				if err != nil {
					return fmt.Errorf("cannot resolve start point %q: %w", start, err)
				}
				if err := r.CreateBranch(args[0], startHash); err != nil {
					return err
				}
				return nil
			}

			// List mode.
			branches, err := r.ListBranches()
			if err != nil {
				return err
			}

			current, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch (refuses if not fully merged)")
	cmd.Flags().StringVarP(&forceDeleteBranch, "delete-force", "D", "", "delete the named branch, even if not fully merged")

	return cmd
}
