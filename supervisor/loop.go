package supervisor

import (
	"context"
	"net"
	"syscall"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/sirupsen/logrus"

	"github.com/srylax/subuidless/procfs"
	"github.com/srylax/subuidless/seccomp"
)

// Loop is the supervisor loop (SL): it owns the control socket and
// the session table, and dispatches each accepted connection to its
// own namespace-joining worker chain.
type Loop struct {
	sessions *sessionTable
}

// New returns a Loop ready to Run.
func New() *Loop {
	return &Loop{sessions: newSessionTable()}
}

// Run accepts connections on the control socket until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	path, err := socketPath()
	if err != nil {
		return err
	}
	ln, err := listen(path)
	if err != nil {
		return err
	}
	defer ln.Close()

	go l.sessions.gc(ctx)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logrus.Infof("listening on %s", path)

	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logrus.Warnf("accept error: %v", err)
			continue
		}
		go l.handleConn(conn)
	}
}

func (l *Loop) handleConn(conn *net.UnixConn) {
	defer conn.Close()

	pid, notifyFd, err := recvInit(conn)
	if err != nil {
		logrus.Warnf("control message error: %v", err)
		return
	}

	l.sessions.track(pid)
	defer l.sessions.untrack(pid)

	if err := Spawn(pid, notifyFd); err != nil {
		logrus.Warnf("failed to start namespace-join worker for pid %d: %v", pid, err)
		_ = syscall.Close(notifyFd)
	}
}

// runNotificationLoop receives notifications on notifier until the
// tracee's namespace goes away, spawning one worker goroutine per
// notification so independent syscalls dispatch concurrently without
// any handler-level shared mutable state.
func runNotificationLoop(notifier seccomp.Notifier, dispatcher *seccomp.Dispatcher, hostPid uint32) error {
	for {
		req, err := notifier.Receive()
		if err != nil {
			return err
		}

		// D3: translate the reported pid through /proc/<pid>/status's
		// NSpid: line, the pid as seen in the namespace this process
		// has joined, rather than the host-namespace pid the kernel
		// reports on the notification.
		if ns, err := procfs.NSpid(req.Pid); err == nil {
			req.Pid = ns
		}

		go func(req *libseccomp.ScmpNotifReq) {
			resp := dispatcher.Handle(notifier, req)
			if err := notifier.Respond(resp); err != nil {
				logrus.Debugf("responding to notification %d for pid %d: %v", req.Id, hostPid, err)
			}
		}(req)
	}
}
