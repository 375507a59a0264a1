package seccomp

import (
	"encoding/binary"
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix"
	libseccomp "github.com/seccomp/libseccomp-golang"
)

// registry is the dispatch registry (DR): an immutable mapping from
// syscall number to Handler, built once at startup and never mutated
// afterward. hashicorp/go-immutable-radix's copy-on-write Txn/Commit
// API makes "populated once, shared read-only across every worker
// goroutine" a property of the data structure itself, not just a
// convention a reviewer has to trust.
type registry struct {
	tree *iradix.Tree
}

type descriptor struct {
	syscallName string
	handler     Handler
}

// descriptors lists the syscalls subuidless supervises. Each entry's
// syscall number is resolved once, at registry build time, so a
// kernel or libseccomp-golang naming mismatch fails loudly at startup
// instead of silently at first use.
var descriptors = []descriptor{
	{syscallName: "fchownat", handler: handleFchownat},
	{syscallName: "newfstatat", handler: handleNewfstatat},
	{syscallName: "openat", handler: handleOpenat},
}

// NewDispatcher builds a Dispatcher over every registered descriptor.
func NewDispatcher() (*Dispatcher, error) {
	txn := iradix.New().Txn()
	for _, d := range descriptors {
		num, err := libseccomp.GetSyscallFromName(d.syscallName)
		if err != nil {
			return nil, fmt.Errorf("resolving syscall number for %s: %w", d.syscallName, err)
		}
		txn.Insert(syscallKey(num), d.handler)
	}
	return &Dispatcher{reg: &registry{tree: txn.Commit()}}, nil
}

func syscallKey(num libseccomp.ScmpSyscall) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(int32(num)))
	return key
}

func (r *registry) lookup(num libseccomp.ScmpSyscall) (Handler, bool) {
	v, ok := r.tree.Get(syscallKey(num))
	if !ok {
		return nil, false
	}
	return v.(Handler), true
}
