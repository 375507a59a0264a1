package seccomp

import (
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
)

const openatKnownFlags = uint64(unix.O_RDONLY | unix.O_WRONLY | unix.O_RDWR | unix.O_CREAT |
	unix.O_EXCL | unix.O_NOCTTY | unix.O_TRUNC | unix.O_APPEND | unix.O_NONBLOCK |
	unix.O_DIRECTORY | unix.O_NOFOLLOW | unix.O_CLOEXEC | unix.O_SYNC | unix.O_DIRECT |
	unix.O_LARGEFILE | unix.O_NOATIME | unix.O_PATH | unix.O_TMPFILE)

// modeKnownBits covers the permission bits plus setuid/setgid/sticky —
// everything open(2)'s mode argument is ever defined to carry.
const modeKnownBits = uint64(0o7777)

// handleOpenat emulates openat(dirfd, pathname, flags, mode): it
// performs the real open in the supervisor's own view, to surface any
// real permission failure, then immediately closes the resulting fd.
// The supervisor never hands that fd to the tracee: the response is a
// plain value response of 0 with no flags, so the kernel completes
// the tracee's openat with return value 0 and the tracee's own open is
// not performed.
func handleOpenat(ctx *Context) (int64, error) {
	dirFile, err := ctx.Args.OptionalFile(0)
	if err != nil {
		return 0, err
	}
	if dirFile != nil {
		defer dirFile.Close()
	}

	pathname, err := ctx.Args.Path(1)
	if err != nil {
		return 0, err
	}
	flags, err := ctx.Args.Flags(2, openatKnownFlags)
	if err != nil {
		return 0, err
	}
	mode, err := ctx.Args.Flags(3, modeKnownBits)
	if err != nil {
		return 0, err
	}

	fd, err := unix.Openat(dirfdOf(dirFile), pathname, int(flags), uint32(mode))
	if err != nil {
		return 0, errno.Wrap(err, errno.FromOS(err), "performing real openat")
	}
	unix.Close(fd)
	return 0, nil
}
