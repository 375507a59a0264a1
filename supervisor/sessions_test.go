package supervisor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionTableSweepForgetsDeadPids(t *testing.T) {
	tbl := newSessionTable()
	tbl.track(uint32(os.Getpid()))
	tbl.track(uint32(1 << 30))

	tbl.sweep()

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	_, aliveTracked := tbl.tracked[uint32(os.Getpid())]
	_, deadTracked := tbl.tracked[uint32(1<<30)]
	require.True(t, aliveTracked)
	require.False(t, deadTracked)
}

func TestSessionTableUntrack(t *testing.T) {
	tbl := newSessionTable()
	tbl.track(42)
	tbl.untrack(42)

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	_, ok := tbl.tracked[42]
	require.False(t, ok)
}
