package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "rvs",
		Short: "A local, Git-compatible version control engine",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newMvCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newLsFilesCmd())
	root.AddCommand(newLsTreeCmd())
	root.AddCommand(newDiffTreeCmd())
	root.AddCommand(newWorktreeCmd())
	root.AddCommand(newStashCmd())
	root.AddCommand(newRebaseCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the process exit code from spec §6: 0
// success, 1 usage/expected failure, 128 fatal. Errors that never passed
// through internal/rvserr default to 1 (expected failure).
func exitCodeFor(err error) int {
	kind := rvserr.KindOf(err)
	if kind == rvserr.Unknown {
		return 1
	}
	return kind.ExitCode()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rvs 0.1.0-dev")
		},
	}
}
