package argmarshal

import (
	"os"
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srylax/subuidless/errno"
)

type alwaysValid struct{}

func (alwaysValid) Valid(uint64) error { return nil }

func selfArgs(words [6]uint64) Args {
	return Args{Pid: uint32(os.Getpid()), NotifID: 1, Valid: alwaysValid{}, Words: words}
}

func TestUint32RejectsOverflow(t *testing.T) {
	a := selfArgs([6]uint64{0, 0, 1 << 40})
	_, err := a.Uint32(2)
	require.Error(t, err)
	assert.Equal(t, syscall.EINVAL, errno.Of(err))
}

func TestUint32Passthrough(t *testing.T) {
	a := selfArgs([6]uint64{42})
	v, err := a.Uint32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestFlagsRejectsUnknownBits(t *testing.T) {
	a := selfArgs([6]uint64{0, 0, 0, 0, 0b1000})
	_, err := a.Flags(4, 0b0111)
	require.Error(t, err)
	assert.Equal(t, syscall.EINVAL, errno.Of(err))
}

func TestFlagsAllowsKnownBits(t *testing.T) {
	a := selfArgs([6]uint64{0, 0, 0, 0, 0b0101})
	v, err := a.Flags(4, 0b0111)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b0101), v)
}

func TestOptionalFileNegativeIsAbsent(t *testing.T) {
	a := selfArgs([6]uint64{uint64(uint32(int32(-1)))})
	f, err := a.OptionalFile(0)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPathReadsFromOwnMemory(t *testing.T) {
	payload := append([]byte("/etc/passwd"), 0)
	addr := uint64(uintptr(unsafe.Pointer(&payload[0])))

	a := selfArgs([6]uint64{0, addr})
	path, err := a.Path(1)
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", path)
}

func TestPathRejectsMissingTerminator(t *testing.T) {
	payload := make([]byte, maxPathLen+16)
	for i := range payload {
		payload[i] = 'a'
	}
	addr := uint64(uintptr(unsafe.Pointer(&payload[0])))

	a := selfArgs([6]uint64{0, addr})
	_, err := a.Path(1)
	require.Error(t, err)
	assert.Equal(t, syscall.ENAMETOOLONG, errno.Of(err))
}
