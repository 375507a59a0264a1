// Package supervisor implements the supervisor loop (SL): the Unix
// control socket that accepts one notify fd per containerized
// process, the self re-exec dance that joins the target's namespaces,
// and the per-notification dispatch loop that runs once inside them.
//
// It is built entirely on fetchable, real-ecosystem dependencies —
// see DESIGN.md for the full dependency ledger.
package supervisor

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
)

const (
	socketName         = "subuidless.socket"
	maxControlMsgBytes = 4096
)

type controlMessage struct {
	Pid int `json:"pid"`
}

// socketPath resolves the control socket path under XDG_RUNTIME_DIR,
// which must be set in the environment this runs under.
func socketPath() (string, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", errno.New(syscall.EINVAL, "XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(dir, socketName), nil
}

func listen(path string) (*net.UnixListener, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errno.Wrap(err, errno.FromOS(err), "resolving control socket address")
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, errno.Wrap(err, errno.FromOS(err), "binding control socket")
	}
	return ln, nil
}

// recvInit reads one containerized process's control message and its
// single ancillary seccomp notify fd from a freshly accepted
// connection.
//
// Grounded in the vendored opencontainers/runc
// libcontainer/process_linux.go:recvSeccompFd idiom found in the
// example pack: ReadMsgUnix plus
// unix.ParseSocketControlMessage/ParseUnixRights to pull a single
// SCM_RIGHTS fd out of the ancillary data.
func recvInit(conn *net.UnixConn) (pid uint32, notifyFd int, err error) {
	buf := make([]byte, maxControlMsgBytes)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, rerr := conn.ReadMsgUnix(buf, oob)
	if rerr != nil {
		return 0, -1, errno.Wrap(rerr, errno.FromOS(rerr), "reading control message")
	}

	var msg controlMessage
	if jerr := json.Unmarshal(buf[:n], &msg); jerr != nil {
		return 0, -1, errno.Wrap(jerr, syscall.EINVAL, "decoding control message JSON")
	}
	if msg.Pid <= 0 {
		return 0, -1, errno.New(syscall.EINVAL, "control message missing pid")
	}

	cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
	if perr != nil || len(cmsgs) != 1 {
		return 0, -1, errno.New(syscall.EINVAL, "expected exactly one ancillary message")
	}
	fds, rerr2 := unix.ParseUnixRights(&cmsgs[0])
	if rerr2 != nil || len(fds) != 1 {
		return 0, -1, errno.New(syscall.EINVAL, "expected exactly one ancillary fd")
	}

	return uint32(msg.Pid), fds[0], nil
}
