package seccomp

import (
	"testing"

	iradix "github.com/hashicorp/go-immutable-radix"
	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/stretchr/testify/require"
)

func TestSyscallKeyIsStableAndDistinctPerSyscall(t *testing.T) {
	a := syscallKey(libseccomp.ScmpSyscall(3))
	b := syscallKey(libseccomp.ScmpSyscall(3))
	require.Equal(t, a, b)

	c := syscallKey(libseccomp.ScmpSyscall(4))
	require.NotEqual(t, a, c)
}

func TestRegistryLookupMiss(t *testing.T) {
	reg := &registry{tree: iradix.New()}
	_, ok := reg.lookup(libseccomp.ScmpSyscall(999))
	require.False(t, ok)
}

func TestRegistryLookupHit(t *testing.T) {
	txn := iradix.New().Txn()
	var called bool
	txn.Insert(syscallKey(libseccomp.ScmpSyscall(42)), Handler(func(ctx *Context) (int64, error) {
		called = true
		return 0, nil
	}))
	reg := &registry{tree: txn.Commit()}

	handler, ok := reg.lookup(libseccomp.ScmpSyscall(42))
	require.True(t, ok)
	_, _ = handler(nil)
	require.True(t, called)
}
