package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srylax/subuidless/procfs"
)

// sessionGCInterval is the sampling rate for dead-pid reaping.
const sessionGCInterval = 500 * time.Millisecond

// sessionTable tracks the pid of each containerized process whose
// control-socket connection is being handled. It records pids only: it
// holds no notify fd and closes nothing when a pid is forgotten.
//
// Cancellation of the actual syscall interception is kernel-driven —
// once a tracee exits, notify_id_valid starts failing and every
// in-flight handler unwinds on its own — this table only needs to
// notice when it can stop bothering to track a pid at all.
type sessionTable struct {
	mu      sync.Mutex
	tracked map[uint32]struct{}
}

func newSessionTable() *sessionTable {
	return &sessionTable{tracked: make(map[uint32]struct{})}
}

func (t *sessionTable) track(pid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[pid] = struct{}{}
}

func (t *sessionTable) untrack(pid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, pid)
}

// gc sweeps tracked sessions until ctx is done.
func (t *sessionTable) gc(ctx context.Context) {
	ticker := time.NewTicker(sessionGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *sessionTable) sweep() {
	t.mu.Lock()
	dead := make([]uint32, 0)
	for pid := range t.tracked {
		if !procfs.Alive(pid) {
			dead = append(dead, pid)
		}
	}
	for _, pid := range dead {
		delete(t.tracked, pid)
	}
	t.mu.Unlock()

	for _, pid := range dead {
		logrus.Debugf("forgot stale seccomp session for pid %d", pid)
	}
}
