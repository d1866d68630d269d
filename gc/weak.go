package gc

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

type weakNode interface {
	forward(trc trace.Tracer)
	sweep() bool
}

// WeakSlot holds a managed value without keeping it alive. After marking,
// the slot is reset to the zero T when its policy reports the referent is
// gone; otherwise each edge to a dead object is nulled on its own. Moving
// collections update it like any other edge.
type WeakSlot[T any] struct {
	rt     *Runtime
	policy trace.Policy[T]
	v      T
}

// NewWeak registers a weak slot holding v.
func NewWeak[T any](rt *Runtime, v T) (*WeakSlot[T], error) {
	if !rt.Running() {
		return nil, errors.NotInitialized(errors.PhaseRoot, "collector")
	}
	p, err := trace.PolicyFor[T]()
	if err != nil {
		return nil, err
	}
	if !p.IsValid(v) {
		return nil, errors.New(errors.PhaseRoot, errors.KindInvalidInput).
			GoType(trace.TypeName[T]()).
			Detail("initial value of weak slot does not resolve").
			Build()
	}
	w := &WeakSlot[T]{rt: rt, policy: p, v: v}
	rt.weak[w] = struct{}{}
	return w, nil
}

// Get returns the referent, or the zero T once it has been collected. While
// incremental marking runs, reading marks the referent so the caller may
// store it.
func (w *WeakSlot[T]) Get() T {
	if w.rt != nil && w.rt.marking != nil {
		w.policy.Trace(marker{rt: w.rt}, &w.v, "weak read barrier")
	}
	return w.v
}

// Set replaces the referent.
func (w *WeakSlot[T]) Set(v T) { w.v = v }

// Release unregisters the slot and drops its referent.
func (w *WeakSlot[T]) Release() {
	if w.rt == nil {
		return
	}
	delete(w.rt.weak, weakNode(w))
	w.rt = nil
	var zero T
	w.v = zero
}

func (w *WeakSlot[T]) forward(trc trace.Tracer) {
	w.policy.Trace(trc, &w.v, "weak slot")
}

func (w *WeakSlot[T]) sweep() bool {
	if w.policy.NeedsSweep(&w.v) {
		var zero T
		w.v = zero
		return true
	}
	var c weakClearer
	w.policy.Trace(&c, &w.v, "weak slot")
	return c.cleared > 0
}

// weakClearer nulls every edge whose referent is dead or about to be swept.
type weakClearer struct {
	cleared int
}

func (*weakClearer) Kind() trace.Kind { return trace.KindMoving }

func (c *weakClearer) OnEdge(ref *value.Ref, _ string) {
	if isDying(*ref) {
		*ref = value.Null
		c.cleared++
	}
}
