package main

import (
	"fmt"

	"github.com/rvs-vcs/rvs/pkg/repo"
	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var soft, mixed, hard bool

	cmd := &cobra.Command{
		Use:   "reset [--soft|--mixed|--hard] [<rev>]",
		Short: "Move HEAD to a revision, optionally rewriting the index and working tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := resetModeFromFlags(soft, mixed, hard)
			if err != nil {
				return err
			}

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if err := r.Reset(mode, rev); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", rev)
			return nil
		},
	}

	cmd.Flags().BoolVar(&soft, "soft", false, "move HEAD only")
	cmd.Flags().BoolVar(&mixed, "mixed", false, "move HEAD and reset the index (default)")
	cmd.Flags().BoolVar(&hard, "hard", false, "move HEAD, the index, and the working tree")

	return cmd
}

func resetModeFromFlags(soft, mixed, hard bool) (repo.ResetMode, error) {
	set := 0
	mode := repo.ResetMixed
	if soft {
		set++
		mode = repo.ResetSoft
	}
	if mixed {
		set++
		mode = repo.ResetMixed
	}
	if hard {
		set++
		mode = repo.ResetHard
	}
	if set > 1 {
		return 0, fmt.Errorf("reset: only one of --soft, --mixed, --hard may be given")
	}
	return mode, nil
}
