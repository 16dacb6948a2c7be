package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch, forceCreateBranch string
	var detach bool

	cmd := &cobra.Command{
		Use:   "checkout [-b|-B <new-branch>] [--detach] <branch|rev> [-- <paths>...]",
		Short: "Switch branches, create branches, or restore files from a revision",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			// checkout <rev> -- <paths>...: restore paths without moving HEAD.
			if dash := cmd.ArgsLenAtDash(); dash != -1 {
				if dash != 1 {
					return fmt.Errorf("checkout: exactly one revision must precede --")
				}
				rev := args[0]
				paths := args[dash:]
				if len(paths) == 0 {
					return fmt.Errorf("checkout: at least one path must follow --")
				}
				if err := r.RestorePaths(rev, paths, true, true); err != nil {
					return err
				}
				return nil
			}

			if forceCreateBranch != "" {
				start := "HEAD"
				if len(args) == 1 {
					start = args[0]
				}
				startHash, err := r.ResolveRevision(start)
				if err != nil {
					return fmt.Errorf("cannot resolve start point %q: %w", start, err)
				}
				if err := r.ForceCreateBranch(forceCreateBranch, startHash); err != nil {
					return err
				}
				if err := r.Checkout(forceCreateBranch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to new branch '%s'\n", forceCreateBranch)
				return nil
			}

			if createBranch != "" {
				start := "HEAD"
				if len(args) == 1 {
					start = args[0]
				}
				startHash, err := r.ResolveRevision(start)
				if err != nil {
					return fmt.Errorf("cannot resolve start point %q: %w", start, err)
				}
				if err := r.CreateBranch(createBranch, startHash); err != nil {
					return err
				}
				if err := r.Checkout(createBranch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to new branch '%s'\n", createBranch)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("checkout: expected exactly one branch or revision argument")
			}
			target := args[0]

			if detach {
				if err := r.CheckoutDetached(target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now detached at %s\n", target)
				return nil
			}

			if err := r.Checkout(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to branch '%s'\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&createBranch, "branch", "b", "", "create and switch to a new branch (fails if it already exists)")
	cmd.Flags().StringVarP(&forceCreateBranch, "force-branch", "B", "", "create or reset a branch and switch to it")
	cmd.Flags().BoolVar(&detach, "detach", false, "checkout a revision without moving any branch, leaving HEAD detached")

	return cmd
}
