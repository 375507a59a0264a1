package ownerxattr

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srylax/subuidless/errno"
)

func newTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owned")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{UID: 165536, GID: 165537}
	decoded, err := Decode(Encode(rec))
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestSetThenGet(t *testing.T) {
	path := newTestFile(t)

	require.NoError(t, Set(path, true, 1000, 1000))

	rec, err := Get(path, true)
	require.NoError(t, err)
	require.Equal(t, Record{UID: 1000, GID: 1000}, rec)
}

func TestGetOnUnsetAttrReturnsZeroRecord(t *testing.T) {
	path := newTestFile(t)

	rec, err := Get(path, true)
	require.NoError(t, err)
	require.True(t, rec.IsZero())
}

// TestSetZeroRemovesRatherThanWrites exercises the fixed zero-owner
// path: chowning back to (0, 0) must remove the existing shadow, and
// must not leave a (0, 0) record behind in its place.
func TestSetZeroRemovesRatherThanWrites(t *testing.T) {
	path := newTestFile(t)

	require.NoError(t, Set(path, true, 2000, 2000))
	require.NoError(t, Set(path, true, 0, 0))

	rec, err := Get(path, true)
	require.NoError(t, err)
	require.True(t, rec.IsZero())

	buf := make([]byte, 32)
	_, err = getxattr(path, true, buf)
	require.Error(t, err, "attribute should have been removed, not rewritten as zero")
}

func TestSetZeroOnNeverSetFileIsNoop(t *testing.T) {
	path := newTestFile(t)
	require.NoError(t, Set(path, true, 0, 0))
}

func TestDecodeMalformedVarintReturnsEnotsup(t *testing.T) {
	// A tag byte with no following varint bytes at all: Uvarint has
	// nothing to consume and reports failure via n <= 0.
	_, err := Decode([]byte{uidFieldTag})
	require.Error(t, err)
	require.Equal(t, syscall.ENOTSUP, errno.Of(err))
}
