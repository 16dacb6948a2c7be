package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newStashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stash",
		Short: "Stash working tree and index changes",
	}

	cmd.AddCommand(newStashPushCmd())
	cmd.AddCommand(newStashPopCmd())
	cmd.AddCommand(newStashListCmd())

	return cmd
}

func newStashPushCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Save the current index and working tree, then reset to HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			entry, err := r.StashPush(message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved stash: %s\n", entry.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "stash message")

	return cmd
}

func newStashPopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pop",
		Short: "Apply the most recent stash entry and drop it from the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.StashPop()
		},
	}
}

func newStashListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stash entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			entries, err := r.StashList()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, e := range entries {
				fmt.Fprintf(out, "stash@{%d}: %s\n", i, e.Message)
			}
			return nil
		},
	}
}
