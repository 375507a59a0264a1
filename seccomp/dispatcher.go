package seccomp

import (
	"syscall"

	libseccomp "github.com/seccomp/libseccomp-golang"

	"github.com/srylax/subuidless/argmarshal"
	"github.com/srylax/subuidless/errno"
)

// Dispatcher owns the dispatch registry and turns one raw notification
// into a response: look up the handler, run it, and TOCTOU-check once
// more immediately before answering the kernel so a tracee that died
// mid-handler never gets a stale success.
type Dispatcher struct {
	reg *registry
}

// Handle runs the handler registered for req's syscall, if any, and
// builds the notify response to send back.
func (d *Dispatcher) Handle(notifier Notifier, req *libseccomp.ScmpNotifReq) *libseccomp.ScmpNotifResp {
	handler, ok := d.reg.lookup(req.Data.Syscall)
	if !ok {
		return errorResponse(req.Id, syscall.ENOSYS)
	}

	ctx := &Context{
		Notif:    *req,
		Notifier: notifier,
		Args: argmarshal.Args{
			Pid:     req.Pid,
			NotifID: req.Id,
			Valid:   notifier,
			Words:   req.Data.Args,
		},
	}

	val, err := handler(ctx)
	if err != nil {
		return errorResponse(req.Id, errno.Of(err))
	}

	if err := notifier.Valid(req.Id); err != nil {
		return errorResponse(req.Id, syscall.EPERM)
	}
	return successResponse(req.Id, val)
}
