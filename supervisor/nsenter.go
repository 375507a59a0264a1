package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
	"github.com/srylax/subuidless/seccomp"
)

// StageJoin and StageEnter are the hidden CLI subcommand names
// cmd/subuidless dispatches to when it re-execs itself. They are
// exported so main.go can wire them into its cli.App without this
// package needing to know anything about urfave/cli.
const (
	StageJoin  = "nsenter-join"
	StageEnter = "nsenter-enter"
)

const envTargetPid = "SUBUIDLESS_TARGET_PID"

// notifyFdSlot: the notify fd is always fd 3 in a re-exec'd child: cmd.ExtraFiles[0]
// lands immediately after stdin/stdout/stderr.
const notifyFdSlot = 3

// Spawn launches the self re-exec chain that joins pid's namespaces
// and hands it the tracee's notify fd. Go cannot safely fork() a
// multithreaded runtime, so each hop is realized here as
// exec.Command(...).Start() — a real fork+exec pair, just with the
// exec immediate rather than deferred.
func Spawn(pid uint32, notifyFd int) error {
	notifyFile := os.NewFile(uintptr(notifyFd), "seccomp-notify")
	defer notifyFile.Close()

	cmd := exec.Command("/proc/self/exe", StageJoin)
	cmd.ExtraFiles = []*os.File{notifyFile}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", envTargetPid, pid))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return errno.Wrap(err, errno.FromOS(err), "spawning namespace-join worker")
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logrus.Debugf("namespace-join worker for pid %d exited: %v", pid, err)
		}
	}()
	return nil
}

func targetPidFromEnv() (uint32, error) {
	raw := os.Getenv(envTargetPid)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errno.Wrap(err, syscall.EINVAL, "parsing "+envTargetPid)
	}
	return uint32(v), nil
}

// RunJoinStage is the entry point for the StageJoin re-exec: it joins
// the target's user, mount, and pid namespaces (in that order), then
// re-execs itself a second time so the next process born is a genuine
// member of the target pid namespace. setns(CLONE_NEWPID) only changes
// which namespace a process's future children are born into, never
// the calling process's own identity — hence the second re-exec.
func RunJoinStage() error {
	runtime.LockOSThread()

	pid, err := targetPidFromEnv()
	if err != nil {
		return err
	}
	notifyFile := os.NewFile(notifyFdSlot, "seccomp-notify")

	if err := unix.Unshare(unix.CLONE_FS); err != nil {
		return errno.Wrap(err, errno.FromOS(err), "detaching mount namespace")
	}

	pidfd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		return errno.Wrap(err, errno.FromOS(err), "opening pid fd for target")
	}
	defer unix.Close(pidfd)

	for _, ns := range []int{unix.CLONE_NEWUSER, unix.CLONE_NEWNS, unix.CLONE_NEWPID} {
		if err := unix.Setns(pidfd, ns); err != nil {
			return errno.Wrap(err, errno.FromOS(err), "joining target namespace")
		}
	}

	cmd := exec.Command("/proc/self/exe", StageEnter)
	cmd.ExtraFiles = []*os.File{notifyFile}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", envTargetPid, pid))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return errno.Wrap(err, errno.FromOS(err), "spawning namespace-entered worker")
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logrus.Debugf("namespace-entered worker for pid %d exited: %v", pid, err)
		}
	}()
	return nil
}

// RunEnterStage is the entry point for the StageEnter re-exec: the
// process running it was forked by a parent already setns'd into the
// target's pid namespace, so it is itself a true member of it. This is
// where the actual notification loop runs.
func RunEnterStage() error {
	pid, err := targetPidFromEnv()
	if err != nil {
		return err
	}
	notifyFile := os.NewFile(notifyFdSlot, "seccomp-notify")

	dispatcher, err := seccomp.NewDispatcher()
	if err != nil {
		return errno.Wrap(err, syscall.ENOSYS, "building dispatch registry")
	}

	notifier := seccomp.Notifier{Fd: libseccomp.ScmpFd(notifyFile.Fd())}
	return runNotificationLoop(notifier, dispatcher, pid)
}
