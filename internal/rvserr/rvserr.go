// Package rvserr defines the error taxonomy the porcelain orchestrator and
// CLI boundary use to decide exit codes and message phrasing.
package rvserr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error for exit-code mapping and caller handling.
type Kind int

const (
	Unknown Kind = iota
	NotARepository
	RepositoryCorrupt
	InvalidRef
	AmbiguousRef
	UnknownRev
	DirtyWorkingTree
	MergeConflict
	NothingToCommit
	PathOutsideRepo
	IndexLocked
	WorktreeLocked
	WorktreeExists
	BranchExists
	BranchNotFullyMerged
	IOError
	UsageError
)

func (k Kind) String() string {
	switch k {
	case NotARepository:
		return "NotARepository"
	case RepositoryCorrupt:
		return "RepositoryCorrupt"
	case InvalidRef:
		return "InvalidRef"
	case AmbiguousRef:
		return "AmbiguousRef"
	case UnknownRev:
		return "UnknownRev"
	case DirtyWorkingTree:
		return "DirtyWorkingTree"
	case MergeConflict:
		return "MergeConflict"
	case NothingToCommit:
		return "NothingToCommit"
	case PathOutsideRepo:
		return "PathOutsideRepo"
	case IndexLocked:
		return "IndexLocked"
	case WorktreeLocked:
		return "WorktreeLocked"
	case WorktreeExists:
		return "WorktreeExists"
	case BranchExists:
		return "BranchExists"
	case BranchNotFullyMerged:
		return "BranchNotFullyMerged"
	case IOError:
		return "IOError"
	case UsageError:
		return "UsageError"
	default:
		return "Unknown"
	}
}

// ExitCode maps a Kind to the process exit code from spec section 6:
// 0 success, 1 usage/expected failure, 128 fatal.
func (k Kind) ExitCode() int {
	switch k {
	case Unknown:
		return 0
	case RepositoryCorrupt, NotARepository, UnknownRev, AmbiguousRef, InvalidRef:
		return 128
	default:
		return 1
	}
}

// Error is a typed, wrapped error carrying a Kind for exit-code mapping.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind, wrapping a lower-level cause.
// The cause's stack is preserved via pkg/errors for RepositoryCorrupt
// diagnostics printed at the CLI boundary.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: pkgerrors.WithMessage(err, msg)}
}

// KindOf extracts the Kind of err, walking wrapped errors. Unknown is
// returned for errors that never passed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is (or wraps) an Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
