package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocketPathRequiresRuntimeDir(t *testing.T) {
	old, had := os.LookupEnv("XDG_RUNTIME_DIR")
	os.Unsetenv("XDG_RUNTIME_DIR")
	defer func() {
		if had {
			os.Setenv("XDG_RUNTIME_DIR", old)
		}
	}()

	_, err := socketPath()
	require.Error(t, err)
}

func TestSocketPathJoinsRuntimeDir(t *testing.T) {
	old, had := os.LookupEnv("XDG_RUNTIME_DIR")
	os.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	defer func() {
		if had {
			os.Setenv("XDG_RUNTIME_DIR", old)
		} else {
			os.Unsetenv("XDG_RUNTIME_DIR")
		}
	}()

	path, err := socketPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/run/user/1000", socketName), path)
}
