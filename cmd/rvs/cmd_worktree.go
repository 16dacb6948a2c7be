package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newWorktreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Manage linked worktrees over the shared object store",
	}

	cmd.AddCommand(newWorktreeAddCmd())
	cmd.AddCommand(newWorktreeListCmd())
	cmd.AddCommand(newWorktreeRemoveCmd())
	cmd.AddCommand(newWorktreeLockCmd())
	cmd.AddCommand(newWorktreeUnlockCmd())

	return cmd
}

func newWorktreeAddCmd() *cobra.Command {
	var newBranch string

	cmd := &cobra.Command{
		Use:   "add <path> [<rev>]",
		Short: "Create a new linked worktree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			path := args[0]
			target := newBranch
			createBranch := newBranch != ""
			if !createBranch {
				if len(args) == 2 {
					target = args[1]
				} else {
					head, err := r.ResolveRef("HEAD")
					if err != nil {
						return fmt.Errorf("worktree add: resolve HEAD: %w", err)
					}
					target = string(head)
				}
			}

			return r.AddWorktree(path, target, createBranch)
		},
	}

	cmd.Flags().StringVarP(&newBranch, "branch", "b", "", "create a new branch and check it out in the worktree")

	return cmd
}

func newWorktreeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered worktrees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			infos, err := r.ListWorktrees()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, info := range infos {
				branch := info.Branch
				if branch == "" {
					branch = "detached"
				}
				status := ""
				if info.Locked {
					status = " locked"
				}
				fmt.Fprintf(out, "%s\t%s\t%s%s\n", info.Path, info.Head, branch, status)
			}
			return nil
		},
	}
}

func newWorktreeRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a linked worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.RemoveWorktree(args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove even if locked")

	return cmd
}

func newWorktreeLockCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "lock <name>",
		Short: "Lock a worktree against removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.LockWorktree(args[0], reason)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason for the lock")

	return cmd
}

func newWorktreeUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <name>",
		Short: "Unlock a worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.UnlockWorktree(args[0])
		},
	}
}
