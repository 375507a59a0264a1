// Package errno carries a concrete kernel errno alongside a
// human-readable context chain, so a deeply nested failure can still
// be answered to a tracee with the right number.
//
// This mirrors the original Srylax/subuidless prototype's
// SyscallErrno/attach(errno) pattern: every fallible step is tagged
// with the errno the tracee should see on failure, and the tag rides
// along through any number of further wraps.
package errno

import (
	"syscall"

	"github.com/pkg/errors"
)

// Error pairs a syscall.Errno with a wrapped cause.
type Error struct {
	errno syscall.Errno
	err   error
}

// New creates a tagged error carrying errno and msg.
func New(e syscall.Errno, msg string) error {
	return &Error{errno: e, err: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(e syscall.Errno, format string, args ...interface{}) error {
	return &Error{errno: e, err: errors.Errorf(format, args...)}
}

// Wrap tags err with e and prepends msg to its context chain. Wrap
// returns nil if err is nil, matching errors.Wrap's convention.
func Wrap(err error, e syscall.Errno, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{errno: e, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(err error, e syscall.Errno, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{errno: e, err: errors.Wrapf(err, format, args...)}
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Errno() syscall.Errno { return e.errno }

// Of extracts the kernel errno carried by err, walking its wrap chain.
// A raw syscall.Errno in the chain is returned as is; an error with
// neither a New/Wrap tag nor a raw errno falls back to EINVAL.
func Of(err error) syscall.Errno {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.errno
	}
	var raw syscall.Errno
	if errors.As(err, &raw) {
		return raw
	}
	return syscall.EINVAL
}

// FromOS maps an OS-level error to its errno, defaulting to EIO for
// failures with no syscall.Errno anywhere in their chain. Use this at
// call sites that already know the failure is I/O-shaped, where EIO is
// a more honest default than EINVAL.
func FromOS(err error) syscall.Errno {
	var raw syscall.Errno
	if errors.As(err, &raw) {
		return raw
	}
	return syscall.EIO
}
