package procfs

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func withMemFs(t *testing.T) {
	t.Helper()
	prev := Fs
	Fs = afero.NewMemMapFs()
	t.Cleanup(func() { Fs = prev })
}

func TestNSpidReadsLastField(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(Fs, "/proc/4242/status", []byte(
		"Name:\tsh\nPid:\t4242\nNSpid:\t4242\t7\n"), 0o644))

	pid, err := NSpid(4242)
	require.NoError(t, err)
	require.Equal(t, uint32(7), pid)
}

func TestNSpidSingleNamespace(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(Fs, "/proc/99/status", []byte(
		"Name:\tinit\nNSpid:\t99\n"), 0o644))

	pid, err := NSpid(99)
	require.NoError(t, err)
	require.Equal(t, uint32(99), pid)
}

func TestNSpidMissingLineErrors(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(Fs, "/proc/1/status", []byte("Name:\tinit\n"), 0o644))

	_, err := NSpid(1)
	require.Error(t, err)
}

func TestMountTypeFindsExactMountpoint(t *testing.T) {
	withMemFs(t)
	line := "25 20 0:21 / /sys rw,nosuid,nodev,noexec,relatime shared:7 - sysfs sysfs rw\n"
	require.NoError(t, afero.WriteFile(Fs, "/proc/1/mountinfo", []byte(line), 0o644))

	fstype, err := MountType(1, "/sys")
	require.NoError(t, err)
	require.Equal(t, "sysfs", fstype)
}

func TestMountTypeNotFound(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(Fs, "/proc/1/mountinfo", []byte(""), 0o644))

	_, err := MountType(1, "/sys")
	require.Error(t, err)
}

func TestCwdResolvesRealProcess(t *testing.T) {
	cwd, err := Cwd(uint32(os.Getpid()))
	require.NoError(t, err)
	require.NotEmpty(t, cwd)
}

func TestResolveFileRoundTripsThroughProcSelfFd(t *testing.T) {
	f, err := os.Open(os.Args[0])
	require.NoError(t, err)
	defer f.Close()

	resolved, err := ResolveFile(f)
	require.NoError(t, err)
	require.NotEmpty(t, resolved)
}

func TestAliveOnCurrentProcess(t *testing.T) {
	require.True(t, Alive(uint32(os.Getpid())))
}

func TestAliveOnBogusPid(t *testing.T) {
	require.False(t, Alive(uint32(1<<30)))
}

func TestOpenFdRejectsMissingFd(t *testing.T) {
	_, err := OpenFd(uint32(os.Getpid()), 1<<20)
	require.Error(t, err)
}
