package seccomp

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/procfs"
)

func withMemFs(t *testing.T) {
	t.Helper()
	prev := procfs.Fs
	procfs.Fs = afero.NewMemMapFs()
	t.Cleanup(func() { procfs.Fs = prev })
}

func TestResolvePathAbsoluteIgnoresDirfd(t *testing.T) {
	path, err := resolvePath(1, nil, "/etc/passwd", 0)
	require.NoError(t, err)
	require.Equal(t, "/etc/passwd", path)
}

func TestResolvePathRelativeToCwdWithoutDirfd(t *testing.T) {
	path, err := resolvePath(uint32(os.Getpid()), nil, "sub/file", 0)
	require.NoError(t, err)
	require.Contains(t, path, "sub/file")
}

func TestResolvePathEmptyPathWithoutDirfdUsesCwd(t *testing.T) {
	path, err := resolvePath(uint32(os.Getpid()), nil, "", uint64(unix.AT_EMPTY_PATH))
	require.NoError(t, err)
	require.NotEmpty(t, path)
}

func TestIgnoreSysChownRequiresSysfsMount(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(procfs.Fs, "/proc/5/mountinfo",
		[]byte("25 20 0:21 / /sys rw shared:7 - sysfs sysfs rw\n"), 0o644))

	require.True(t, ignoreSysChown(5, "/sys"))
	require.False(t, ignoreSysChown(5, "/sys/fs/cgroup"))
}

func TestIgnoreSysChownFalseWhenNotSysfs(t *testing.T) {
	withMemFs(t)
	require.NoError(t, afero.WriteFile(procfs.Fs, "/proc/6/mountinfo",
		[]byte("25 20 0:21 / /sys rw shared:7 - tmpfs tmpfs rw\n"), 0o644))

	require.False(t, ignoreSysChown(6, "/sys"))
}
