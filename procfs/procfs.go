// Package procfs reads the /proc entries subuidless needs to resolve
// tracee paths, descriptors, and pid-namespace identities.
//
// It uses an afero-backed file abstraction swappable between the real
// OS and an in-memory filesystem for tests, trimmed to the handful of
// /proc reads this supervisor actually performs (no FUSE node
// semantics, no directory listings, no namespace-inode bookkeeping).
package procfs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
)

// Fs backs the /proc/<pid>/status and /proc/<pid>/mountinfo reads in
// this package (NSpid, MountType); the symlink and fd helpers use the
// real OS directly. Tests swap it for afero.NewMemMapFs() to exercise
// parsing without a real /proc.
var Fs afero.Fs = afero.NewOsFs()

// Cwd resolves pid's current working directory.
func Cwd(pid uint32) (string, error) {
	return readSymlink(fmt.Sprintf("/proc/%d/cwd", pid))
}

// Root resolves pid's filesystem root (differs from "/" inside a
// chroot or a mount-namespaced container).
func Root(pid uint32) (string, error) {
	return readSymlink(fmt.Sprintf("/proc/%d/root", pid))
}

// FdPath resolves the real path a tracee's fd currently refers to.
func FdPath(pid uint32, fd int32) (string, error) {
	return readSymlink(fmt.Sprintf("/proc/%d/fd/%d", pid, fd))
}

func readSymlink(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", errno.Wrap(err, errno.FromOS(err), "reading /proc symlink")
	}
	return target, nil
}

// OpenFd reopens fd as seen by pid, bound to the supervisor's own
// process. Opening it as a real fd (rather than just resolving its
// path) is what lets handlers use it as a dirfd in real *at syscalls.
func OpenFd(pid uint32, fd int32) (*os.File, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/fd/%d", pid, fd))
	if err != nil {
		return nil, errno.Wrap(err, syscall.EBADFD, "reopening tracee fd")
	}
	return f, nil
}

// ResolveFile returns the real path backing an *os.File opened via
// OpenFd — reading /proc/self/fd/<n> from the supervisor's own
// process, the same /proc symlink trick OpenFd itself relies on.
func ResolveFile(f *os.File) (string, error) {
	return readSymlink(fmt.Sprintf("/proc/self/fd/%d", f.Fd()))
}

// NSpid returns the pid a process sees for itself in the innermost
// pid namespace it belongs to: the last field of the NSpid: line in
// /proc/<hostPid>/status. A process with no nested pid namespace has
// a single-element NSpid: line, so this is a safe default lookup even
// for a tracee the supervisor hasn't joined any namespace for.
//
// NSpid is the kernel's own translation table for this, so it is
// used here instead of inferring the mapping from pid ordering.
func NSpid(hostPid uint32) (uint32, error) {
	f, err := Fs.Open(fmt.Sprintf("/proc/%d/status", hostPid))
	if err != nil {
		return 0, errno.Wrap(err, syscall.ESRCH, "reading process status")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "NSpid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "NSpid:"))
		if len(fields) == 0 {
			return 0, errno.New(syscall.ENOENT, "empty NSpid line")
		}
		v, err := strconv.ParseUint(fields[len(fields)-1], 10, 32)
		if err != nil {
			return 0, errno.Wrap(err, syscall.ENOENT, "parsing NSpid value")
		}
		return uint32(v), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, errno.Wrap(err, errno.FromOS(err), "scanning process status")
	}
	return 0, errno.New(syscall.ENOENT, "NSpid line not found")
}

// Alive probes pid with a zero signal, the standard non-destructive
// liveness check: ESRCH means the process is gone, EPERM means it
// exists but isn't ours to signal (still alive).
func Alive(pid uint32) bool {
	err := unix.Kill(int(pid), 0)
	return err == nil || err == unix.EPERM
}

// mountinfoFormat scans /proc/<pid>/mountinfo's fixed-format leading
// fields; see proc(5) for the full grammar.
const mountinfoFormat = "%d %d %d:%d %s %s %s"

// MountType returns the filesystem type of the mount at exactly
// mountpoint, as seen by pid. It returns an error if mountpoint is
// not itself a mount point for pid.
func MountType(pid uint32, mountpoint string) (string, error) {
	f, err := Fs.Open(fmt.Sprintf("/proc/%d/mountinfo", pid))
	if err != nil {
		return "", errno.Wrap(err, errno.FromOS(err), "reading mountinfo")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		text := scanner.Text()

		var (
			id, parent, major, minor int
			root, mp, opts           string
		)
		if _, err := fmt.Sscanf(text, mountinfoFormat, &id, &parent, &major, &minor, &root, &mp, &opts); err != nil {
			continue
		}
		if mp != mountpoint {
			continue
		}

		sep := strings.Index(text, " - ")
		if sep < 0 {
			continue
		}
		postSep := strings.Fields(text[sep+3:])
		if len(postSep) < 1 {
			continue
		}
		return postSep[0], nil
	}
	if err := scanner.Err(); err != nil {
		return "", errno.Wrap(err, errno.FromOS(err), "scanning mountinfo")
	}
	return "", errno.New(syscall.ENOENT, "mountpoint not found")
}
