package seccomp

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/procfs"
)

// resolvePath turns a dirfd + pathname + flags triple into the
// absolute path subuidless uses as the ownerxattr key, following the
// same AT_EMPTY_PATH / AT_FDCWD / dirfd-relative rules real *at
// syscalls use. dirFile is nil when the tracee passed AT_FDCWD.
func resolvePath(pid uint32, dirFile *os.File, pathname string, flags uint64) (string, error) {
	switch {
	case pathname == "" && flags&uint64(unix.AT_EMPTY_PATH) != 0:
		if dirFile == nil {
			return procfs.Cwd(pid)
		}
		return procfs.ResolveFile(dirFile)

	case filepath.IsAbs(pathname):
		return pathname, nil

	case dirFile == nil:
		cwd, err := procfs.Cwd(pid)
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, pathname), nil

	default:
		base, err := procfs.ResolveFile(dirFile)
		if err != nil {
			return "", err
		}
		return filepath.Join(base, pathname), nil
	}
}

// dirfdOf returns the real dirfd to use in a supervisor-side *at
// syscall: the reopened directory's own fd, or AT_FDCWD when the
// tracee passed none.
func dirfdOf(dirFile *os.File) int {
	if dirFile == nil {
		return unix.AT_FDCWD
	}
	return int(dirFile.Fd())
}

// ignoreSysChown reports whether path is exactly a sysfs mount of
// /sys for pid. /sys inside a container is typically a bind-mount of
// the host's real sysfs: chowning it can never be made to stick via
// the xattr shadow (sysfs doesn't consult user.rootlesscontainers for
// its own presentation), so subuidless short-circuits to success
// rather than running the usual emulation against a mount it cannot
// actually affect. Symlinks to /sys are deliberately not resolved
// here, to avoid an extra lookup on the hot chown path.
func ignoreSysChown(pid uint32, path string) bool {
	if path != "/sys" {
		return false
	}
	fstype, err := procfs.MountType(pid, "/sys")
	if err != nil {
		return false
	}
	return fstype == "sysfs"
}
