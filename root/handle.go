package root

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
)

// owner is a root that can vouch for the handles it issued.
type owner interface {
	alive(seq uint64) bool
}

// Handle is a read-only borrowed view of a rooted T. Obtain one from
// Rooted.Handle, Persistent.Handle or MutableHandle.Handle; the zero Handle
// is unusable. A Handle must not outlive its root.
type Handle[T any] struct {
	p     *T
	owner owner
	seq   uint64
}

// FromMarkedLocation builds a handle over p, which the caller asserts is
// traced by some other root. why documents that root and must not be empty.
func FromMarkedLocation[T any](p *T, why string) Handle[T] {
	if p == nil || why == "" {
		violation(errors.New(errors.PhaseHandle, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Detail("marked location needs a non-nil address and a justification").
			Build())
	}
	return Handle[T]{p: p}
}

func (h Handle[T]) check() {
	if h.p == nil {
		violation(errors.New(errors.PhaseHandle, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Detail("handle has no backing root").
			Build())
	}
	if checks && h.owner != nil && !h.owner.alive(h.seq) {
		violation(errors.New(errors.PhaseHandle, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Detail("handle outlived its root").
			Build())
	}
}

// Get reads the rooted value.
func (h Handle[T]) Get() T {
	h.check()
	return *h.p
}

// Valid reports whether the backing root is still live.
func (h Handle[T]) Valid() bool {
	return h.p != nil && (h.owner == nil || h.owner.alive(h.seq))
}

// MutableHandle is a writable borrowed view of a rooted T. It is created by
// Rooted.Mut.
type MutableHandle[T any] struct {
	h Handle[T]
}

// Get reads the rooted value.
func (m MutableHandle[T]) Get() T { return m.h.Get() }

// Set writes through to the root.
func (m MutableHandle[T]) Set(v T) {
	m.h.check()
	*m.h.p = v
}

// Ptr returns the address of the rooted slot.
func (m MutableHandle[T]) Ptr() *T {
	m.h.check()
	return m.h.p
}

// Handle narrows m to a read-only handle.
func (m MutableHandle[T]) Handle() Handle[T] { return m.h }

// Valid reports whether the backing root is still live.
func (m MutableHandle[T]) Valid() bool { return m.h.Valid() }
