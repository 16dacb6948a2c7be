package repo

import (
	"os"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// modeFromFileInfo classifies a working-tree file as executable or plain
// based on its owner-execute bit.
func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode().Perm()&0o100 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

// normalizeFileMode collapses any unrecognized mode string to the plain
// file mode, so downstream code only ever sees the two modes it supports.
func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

// filePermFromMode maps a tree mode to the permission bits used when
// materializing a file on disk.
func filePermFromMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
