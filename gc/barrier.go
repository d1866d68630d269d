package gc

import (
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

// Heap is a heap-resident slot holding a managed value of type T: a field of
// a native struct or of an object's private data. It is not a root. The
// referent survives only while some trace path visits the slot, so the
// owner's Trace method or class trace hook must call h.Trace on every pass.
//
// The zero value holds the zero T and is ready to use. A Heap must not be
// copied after its first Set.
type Heap[T any] struct {
	v        T
	buffered *Runtime
}

// Get returns the current value.
func (h *Heap[T]) Get() T { return h.v }

// Unbarriered returns the address of the stored value. Writes through it
// bypass both barriers; use it only from trace code.
func (h *Heap[T]) Unbarriered() *T { return &h.v }

// Set stores v. The overwritten value passes through the pre-write barrier
// while incremental marking is running, and a nursery referent in v puts the
// slot in its runtime's store buffer.
func (h *Heap[T]) Set(v T) {
	p := trace.MustPolicyFor[T]()
	if activeMarkings.Load() > 0 {
		p.Trace(preBarrier{}, &h.v, "pre-write barrier")
	}
	h.v = v
	p.Trace(postBarrier[T]{h: h, p: p}, &h.v, "post-write barrier")
}

// Trace visits the stored value.
func (h *Heap[T]) Trace(trc trace.Tracer, name string) {
	trace.MustPolicyFor[T]().Trace(trc, &h.v, name)
}

// Clear stores the zero T and drops the slot from the store buffer.
func (h *Heap[T]) Clear() {
	if activeMarkings.Load() > 0 {
		trace.MustPolicyFor[T]().Trace(preBarrier{}, &h.v, "pre-write barrier")
	}
	if rt := h.buffered; rt != nil {
		delete(rt.storeBuffer, any(h))
		h.buffered = nil
	}
	var zero T
	h.v = zero
}

type preBarrier struct{}

func (preBarrier) Kind() trace.Kind { return trace.KindCallback }

func (preBarrier) OnEdge(ref *value.Ref, _ string) {
	if rt := runtimeFor(*ref); rt != nil && rt.marking != nil {
		rt.preBarrierRef(*ref)
	}
}

type postBarrier[T any] struct {
	h *Heap[T]
	p trace.Policy[T]
}

func (postBarrier[T]) Kind() trace.Kind { return trace.KindCallback }

func (b postBarrier[T]) OnEdge(ref *value.Ref, _ string) {
	if !ref.InNursery() {
		return
	}
	rt := runtimeFor(*ref)
	if rt == nil {
		return
	}
	h, p := b.h, b.p
	rt.storeBuffer[any(h)] = func(trc trace.Tracer) {
		p.Trace(trc, &h.v, "store buffer")
	}
	h.buffered = rt
}
