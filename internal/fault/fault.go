// Package fault classifies operation failures as recoverable or
// non-recoverable.
//
// A recoverable error means re-invoking the same operation later may succeed
// (a domain that is not up yet, a pool that failed to build). A
// non-recoverable error means the inputs or the hypervisor state must change
// first (missing resources, duplicate backups, failed definitions).
package fault

import (
	"errors"
	"fmt"
)

// Kind is the retry classification of an error.
type Kind int

const (
	// KindNone is reported for nil and for unclassified errors.
	KindNone Kind = iota
	KindNonRecoverable
	KindRecoverable
)

func (k Kind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindNonRecoverable:
		return "non-recoverable"
	default:
		return "none"
	}
}

// Error carries a classification and an operator-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NonRecoverable returns an error the caller must not retry.
func NonRecoverable(format string, args ...any) error {
	return &Error{Kind: KindNonRecoverable, Message: fmt.Sprintf(format, args...)}
}

// Recoverable returns an error the caller may retry later.
func Recoverable(format string, args ...any) error {
	return &Error{Kind: KindRecoverable, Message: fmt.Sprintf(format, args...)}
}

// WrapNonRecoverable attaches err as the cause of a non-recoverable error.
func WrapNonRecoverable(err error, format string, args ...any) error {
	return &Error{Kind: KindNonRecoverable, Message: fmt.Sprintf(format, args...), Err: err}
}

// WrapRecoverable attaches err as the cause of a recoverable error.
func WrapRecoverable(err error, format string, args ...any) error {
	return &Error{Kind: KindRecoverable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of the outermost fault in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

// IsRecoverable reports whether err is classified as recoverable.
func IsRecoverable(err error) bool {
	return KindOf(err) == KindRecoverable
}

// IsNonRecoverable reports whether err is classified as non-recoverable.
// Unclassified errors are treated as non-recoverable.
func IsNonRecoverable(err error) bool {
	return err != nil && KindOf(err) != KindRecoverable
}

// Exit codes used by the CLI.
const (
	ExitOK             = 0
	ExitNonRecoverable = 1
	// ExitRecoverable matches EX_TEMPFAIL from sysexits.h.
	ExitRecoverable = 75
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsRecoverable(err):
		return ExitRecoverable
	default:
		return ExitNonRecoverable
	}
}
