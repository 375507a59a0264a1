// Package remotemem reads and writes a tracee's address space through
// /proc/<pid>/mem, bracketing every access with a revalidation of the
// seccomp notification that authorized it.
//
// A tracee can exit, or re-exec into a different program, between the
// moment the supervisor receives a notification and the moment it
// finishes acting on it. Revalidating before AND after each I/O
// operation is the TOCTOU defense: if the id stops being valid, the
// supervisor knows the data it just read or wrote may belong to an
// entirely different process by now, and must treat the whole
// operation as failed rather than trust it.
//
// Reads and writes both follow the same validate/act/validate
// sequence against /proc/<pid>/mem.
package remotemem

import (
	"fmt"
	"os"
	"syscall"

	"github.com/srylax/subuidless/errno"
)

// Validator re-checks that a notification id still refers to the
// syscall the tracee is blocked on. seccomp.Notifier implements this;
// remotemem takes it as an interface instead of importing the seccomp
// package directly, to keep seccomp (which depends on remotemem) from
// forming an import cycle with it.
type Validator interface {
	Valid(id uint64) error
}

// Handle is a bounded reference into one tracee's address space, valid
// only for the lifetime of handling a single notification.
type Handle struct {
	Pid     uint32
	Addr    uint64
	NotifID uint64
	Valid   Validator
}

func (h Handle) memPath() string { return fmt.Sprintf("/proc/%d/mem", h.Pid) }

// Read copies len(buf) bytes from the tracee's address space at Addr
// into buf.
func (h Handle) Read(buf []byte) error {
	if err := h.Valid.Valid(h.NotifID); err != nil {
		return errno.Wrap(err, syscall.EPERM, "pre-read notification id check")
	}

	f, err := os.OpenFile(h.memPath(), os.O_RDONLY, 0)
	if err != nil {
		return errno.Wrap(err, syscall.EFAULT, "opening tracee memory")
	}
	defer f.Close()

	if _, err := f.ReadAt(buf, int64(h.Addr)); err != nil {
		return errno.Wrap(err, syscall.EFAULT, "reading tracee memory")
	}

	if err := h.Valid.Valid(h.NotifID); err != nil {
		return errno.Wrap(err, syscall.EPERM, "post-read notification id check")
	}
	return nil
}

// Write copies data into the tracee's address space at Addr.
func (h Handle) Write(data []byte) error {
	if err := h.Valid.Valid(h.NotifID); err != nil {
		return errno.Wrap(err, syscall.EPERM, "pre-write notification id check")
	}

	f, err := os.OpenFile(h.memPath(), os.O_WRONLY, 0)
	if err != nil {
		return errno.Wrap(err, syscall.EFAULT, "opening tracee memory")
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(h.Addr)); err != nil {
		return errno.Wrap(err, syscall.EFAULT, "writing tracee memory")
	}

	if err := h.Valid.Valid(h.NotifID); err != nil {
		return errno.Wrap(err, syscall.EPERM, "post-write notification id check")
	}
	return nil
}
