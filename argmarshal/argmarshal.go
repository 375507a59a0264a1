// Package argmarshal decodes the six raw argument words of an
// intercepted syscall into the typed values handlers actually need,
// reopening file descriptors and reading remote memory as required.
//
// Every remote read happens here, before a handler runs any xattr or
// real-syscall side effect — materializing the tracee's intent
// completely before acting on any of it, so a TOCTOU failure midway
// through argument decoding never leaves a handler having already
// taken an action based on a half-read argument.
package argmarshal

import (
	"bytes"
	"os"
	"syscall"
	"unicode/utf8"

	"github.com/srylax/subuidless/errno"
	"github.com/srylax/subuidless/procfs"
	"github.com/srylax/subuidless/remotemem"
)

// maxPathLen bounds a single remote path read, matching PATH_MAX.
const maxPathLen = 4096

// Args binds the six raw argument words of one notification to the
// tracee that issued it, plus what's needed to read its memory and
// revalidate the notification around each read.
type Args struct {
	Pid     uint32
	NotifID uint64
	Valid   remotemem.Validator
	Words   [6]uint64
}

func (a Args) handle(idx int) remotemem.Handle {
	return remotemem.Handle{Pid: a.Pid, Addr: a.Words[idx], NotifID: a.NotifID, Valid: a.Valid}
}

// Uint32 coerces word idx to an unsigned 32-bit value.
func (a Args) Uint32(idx int) (uint32, error) {
	w := a.Words[idx]
	if w > 0xFFFFFFFF {
		return 0, errno.New(syscall.EINVAL, "argument overflows uint32")
	}
	return uint32(w), nil
}

// Flags masks word idx against known, rejecting any unrecognized bit.
// A syscall gaining a new flag the supervisor doesn't know about is
// exactly the case that must fail loudly rather than silently ignore
// the bit.
func (a Args) Flags(idx int, known uint64) (uint64, error) {
	v, err := a.Uint32(idx)
	if err != nil {
		return 0, err
	}
	if uint64(v)&^known != 0 {
		return 0, errno.New(syscall.EINVAL, "unrecognized flag bits")
	}
	return uint64(v), nil
}

// OptionalFile reopens the fd at word idx as seen by the tracee,
// re-validating the notification id immediately after the open. A
// negative fd means "absent" (AT_FDCWD for *at syscalls) and yields a
// nil file with no error.
func (a Args) OptionalFile(idx int) (*os.File, error) {
	raw := int32(a.Words[idx])
	if raw < 0 {
		return nil, nil
	}

	f, err := procfs.OpenFd(a.Pid, raw)
	if err != nil {
		return nil, err
	}
	if err := a.Valid.Valid(a.NotifID); err != nil {
		f.Close()
		return nil, errno.Wrap(err, syscall.EPERM, "notification id check after fd reopen")
	}
	return f, nil
}

// Path reads a NUL-terminated path string from the tracee's memory at
// word idx, bounded to maxPathLen bytes.
func (a Args) Path(idx int) (string, error) {
	buf := make([]byte, maxPathLen)
	if err := a.handle(idx).Read(buf); err != nil {
		return "", err
	}

	nul := bytes.IndexByte(buf, 0)
	if nul < 0 {
		return "", errno.New(syscall.ENAMETOOLONG, "remote path missing NUL terminator")
	}

	raw := buf[:nul]
	if !utf8.Valid(raw) {
		return "", errno.New(syscall.ENOENT, "remote path is not valid UTF-8")
	}
	return string(raw), nil
}

// RemoteSlot packages word idx as a Handle for a later, deferred
// write — used for output parameters such as newfstatat's statbuf.
func (a Args) RemoteSlot(idx int) remotemem.Handle {
	return a.handle(idx)
}
