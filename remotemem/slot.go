package remotemem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Encoder produces the raw byte image of a plain-old-data value for
// writing across the trust boundary into a tracee's address space.
// Only types with a fixed C layout, no padding, and an
// architecture-matched representation may have one: StatEncoder is
// the only one SPEC_FULL needs.
type Encoder[T any] func(v T) []byte

// Slot is a deferred, typed write target inside a tracee's address
// space: the handler computes where to write early, while resolving
// arguments, and what to write once it has a result, and Slot keeps
// the two apart.
type Slot[T any] struct {
	handle Handle
	encode Encoder[T]
}

// NewSlot binds h to enc, producing a Slot ready to accept one Write.
func NewSlot[T any](h Handle, enc Encoder[T]) Slot[T] {
	return Slot[T]{handle: h, encode: enc}
}

// Write serializes v with the Slot's Encoder and writes it through the
// underlying Handle, still bracketed by the pre/post notification
// checks Handle.Write performs.
func (s Slot[T]) Write(v T) error {
	return s.handle.Write(s.encode(v))
}

// plainOldData renders any fixed-layout value as its raw byte image.
// It must only be instantiated for types with no padding and an
// architecture-matched representation, which is why it is unexported
// and only exposed through named Encoder values below.
func plainOldData[T any](v T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
}

// StatEncoder serializes a unix.Stat_t by raw byte image. unix.Stat_t
// is the kernel's own ABI struct — fixed layout, no padding — so this
// is only valid when supervisor and tracee share an architecture,
// exactly the "plain old data" discipline the design calls for.
var StatEncoder Encoder[unix.Stat_t] = plainOldData[unix.Stat_t]
