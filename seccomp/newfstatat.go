package seccomp

import (
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
	"github.com/srylax/subuidless/ownerxattr"
	"github.com/srylax/subuidless/remotemem"
)

const newfstatatKnownFlags = uint64(unix.AT_SYMLINK_NOFOLLOW | unix.AT_EMPTY_PATH | unix.AT_NO_AUTOMOUNT)

// handleNewfstatat emulates newfstatat(dirfd, pathname, statbuf,
// flags): it performs the real stat in the supervisor's own view of
// the tracee's filesystem, then overwrites st_uid/st_gid from the
// xattr shadow if one exists, leaving the real values untouched
// otherwise. A file that was never chowned through subuidless reports
// its real on-disk owner, matching the original
// Srylax/subuidless prototype's fstatat handler.
func handleNewfstatat(ctx *Context) (int64, error) {
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
	statSlot := ctx.Args.RemoteSlot(2)
	flags, err := ctx.Args.Flags(3, newfstatatKnownFlags)
	if err != nil {
		return 0, err
	}

	var st unix.Stat_t
	if err := unix.Fstatat(dirfdOf(dirFile), pathname, &st, int(flags)); err != nil {
		return 0, errno.Wrap(err, errno.FromOS(err), "performing real fstatat")
	}

	path, err := resolvePath(ctx.Args.Pid, dirFile, pathname, flags)
	if err == nil {
		follow := flags&uint64(unix.AT_SYMLINK_NOFOLLOW) == 0
		if rec, gerr := ownerxattr.Get(path, follow); gerr == nil && !rec.IsZero() {
			st.Uid = rec.UID
			st.Gid = rec.GID
		}
	}

	slot := remotemem.NewSlot[unix.Stat_t](statSlot, remotemem.StatEncoder)
	if err := slot.Write(st); err != nil {
		return 0, err
	}
	return 0, nil
}
