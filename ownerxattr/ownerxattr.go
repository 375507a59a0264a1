// Package ownerxattr persists the logical owner of a file as the
// user.rootlesscontainers extended attribute, using the wire format
// the rootless-containers project itself defines:
//
//	message Message {
//	    uint32 uid = 1;
//	    uint32 gid = 2;
//	}
//
// Both fields are protobuf varints, so encoding/binary's own
// LEB128-compatible Uvarint helpers produce and parse the record
// without pulling in a protobuf runtime for a two-field message.
package ownerxattr

import (
	"encoding/binary"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/srylax/subuidless/errno"
)

// AttrName is the extended attribute subuidless reads and writes.
const AttrName = "user.rootlesscontainers"

const (
	uidFieldTag = 0x08 // field 1, varint wire type
	gidFieldTag = 0x10 // field 2, varint wire type
)

// Record is the logical owner shadowed by the xattr.
type Record struct {
	UID uint32
	GID uint32
}

// IsZero reports whether r is the root identity (0, 0).
func (r Record) IsZero() bool { return r.UID == 0 && r.GID == 0 }

// Encode renders r as its on-disk protobuf varint bytes.
func Encode(r Record) []byte {
	buf := make([]byte, 0, 2+2*binary.MaxVarintLen32)
	buf = append(buf, uidFieldTag)
	buf = appendUvarint(buf, uint64(r.UID))
	buf = append(buf, gidFieldTag)
	buf = appendUvarint(buf, uint64(r.GID))
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Decode parses the on-disk bytes produced by Encode. Fields may
// appear in either order; an unrecognized tag is skipped as an
// unsupported future field rather than treated as corruption, since
// the real rootless-containers proto message may grow additional
// fields this package does not need.
func Decode(data []byte) (Record, error) {
	var rec Record
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		v, n := binary.Uvarint(data)
		if n <= 0 {
			return Record{}, errno.New(syscall.ENOTSUP, "malformed rootlesscontainers xattr varint")
		}
		data = data[n:]
		switch tag {
		case uidFieldTag:
			rec.UID = uint32(v)
		case gidFieldTag:
			rec.GID = uint32(v)
		}
	}
	return rec, nil
}

// Get reads the shadowed owner of path. A missing attribute is not an
// error: it reports the zero Record, matching a file that has never
// had its ownership emulated.
func Get(path string, follow bool) (Record, error) {
	buf := make([]byte, 32)
	n, err := getxattr(path, follow, buf)
	if err != nil {
		if err == unix.ENODATA || err == unix.ENOTSUP {
			return Record{}, nil
		}
		return Record{}, errno.Wrap(err, errno.FromOS(err), "reading rootlesscontainers xattr")
	}
	return Decode(buf[:n])
}

// Set records (uid, gid) as path's logical owner.
//
// (uid, gid) == (0, 0) is canonicalized to "no shadow" by removing the
// attribute outright and returning immediately — it never falls
// through to also write a (0, 0) record afterward. A root-owned file
// needs no xattr at all, and writing one anyway would make every
// freshly chowned-to-root file carry a stale, pointless attribute.
func Set(path string, follow bool, uid, gid uint32) error {
	if uid == 0 && gid == 0 {
		if err := removexattr(path, follow); err != nil && err != unix.ENODATA && err != unix.ENOTSUP {
			return errno.Wrap(err, errno.FromOS(err), "removing rootlesscontainers xattr")
		}
		return nil
	}

	data := Encode(Record{UID: uid, GID: gid})
	if err := setxattr(path, follow, data); err != nil {
		return errno.Wrap(err, errno.FromOS(err), "setting rootlesscontainers xattr")
	}
	return nil
}

func getxattr(path string, follow bool, buf []byte) (int, error) {
	if follow {
		return unix.Getxattr(path, AttrName, buf)
	}
	return unix.Lgetxattr(path, AttrName, buf)
}

func setxattr(path string, follow bool, data []byte) error {
	if follow {
		return unix.Setxattr(path, AttrName, data, 0)
	}
	return unix.Lsetxattr(path, AttrName, data, 0)
}

func removexattr(path string, follow bool) error {
	if follow {
		return unix.Removexattr(path, AttrName)
	}
	return unix.Lremovexattr(path, AttrName)
}
