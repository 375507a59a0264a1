// Package seccomp holds the dispatch registry (DR) and syscall
// handlers (SH): the table mapping a supervised syscall number to its
// emulation, and the per-syscall emulations themselves.
//
// Every successful response is TOCTOU-checked against the originating
// notification before it's sent, so a tracee that exits mid-emulation
// never gets a stale answer applied to a different process.
package seccomp

import (
	"syscall"

	libseccomp "github.com/seccomp/libseccomp-golang"

	"github.com/srylax/subuidless/argmarshal"
	"github.com/srylax/subuidless/errno"
)

// Notifier wraps one seccomp user-notification fd: it validates
// notification ids and sends the final response, and it is the
// concrete implementation of remotemem.Validator used everywhere in
// this supervisor.
type Notifier struct {
	Fd libseccomp.ScmpFd
}

// Valid implements remotemem.Validator.
func (n Notifier) Valid(id uint64) error {
	return libseccomp.NotifIdValid(n.Fd, id)
}

// Receive blocks until the next notification arrives on n's fd.
func (n Notifier) Receive() (*libseccomp.ScmpNotifReq, error) {
	return libseccomp.NotifReceive(n.Fd)
}

// Respond sends resp back to the kernel, unblocking the tracee.
func (n Notifier) Respond(resp *libseccomp.ScmpNotifResp) error {
	return libseccomp.NotifRespond(n.Fd, resp)
}

func successResponse(id uint64, val int64) *libseccomp.ScmpNotifResp {
	return &libseccomp.ScmpNotifResp{Id: id, Val: val, Error: 0, Flags: 0}
}

func errorResponse(id uint64, e syscall.Errno) *libseccomp.ScmpNotifResp {
	return &libseccomp.ScmpNotifResp{Id: id, Val: 0, Error: int32(e), Flags: 0}
}

// Context carries everything one handler invocation needs: the raw
// notification, the means to revalidate and respond to it, and the
// argument marshaller bound to the tracee that issued it.
type Context struct {
	Notif    libseccomp.ScmpNotifReq
	Notifier Notifier
	Args     argmarshal.Args
}

// Handler emulates one supervised syscall and returns the value the
// kernel should hand the tracee on success. A non-nil error is
// expected to unwrap, via errno.Of, to the syscall.Errno the tracee
// should see instead.
type Handler func(ctx *Context) (int64, error)

func toErrno(err error) syscall.Errno {
	return errno.FromOS(err)
}
