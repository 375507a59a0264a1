package seccomp

import (
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/ownerxattr"
)

const fchownatKnownFlags = uint64(unix.AT_SYMLINK_NOFOLLOW | unix.AT_EMPTY_PATH)

// handleFchownat emulates fchownat(dirfd, pathname, owner, group, flags).
// The real syscall never runs: its entire effect is recording the
// logical owner in the xattr shadow.
func handleFchownat(ctx *Context) (int64, error) {
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
	owner, err := ctx.Args.Uint32(2)
	if err != nil {
		return 0, err
	}
	group, err := ctx.Args.Uint32(3)
	if err != nil {
		return 0, err
	}
	flags, err := ctx.Args.Flags(4, fchownatKnownFlags)
	if err != nil {
		return 0, err
	}

	path, err := resolvePath(ctx.Args.Pid, dirFile, pathname, flags)
	if err != nil {
		return 0, err
	}

	if ignoreSysChown(ctx.Args.Pid, path) {
		return 0, nil
	}

	follow := flags&uint64(unix.AT_SYMLINK_NOFOLLOW) == 0
	if err := ownerxattr.Set(path, follow, owner, group); err != nil {
		// Propagate rather than swallow: a failed xattr write means the
		// tracee's chown silently did nothing, and it deserves to know.
		return 0, err
	}
	return 0, nil
}
