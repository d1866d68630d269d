package root

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
)

// Rooted is a stack root: a slot holding a T that the collector traces, and
// rewrites, for as long as the root is live.
//
// Create it with New and release it with a deferred Release in the same
// function. A Rooted must stay local to that function; do not store it in a
// struct, container or package variable.
type Rooted[T any] struct {
	cx     *Context
	policy trace.Policy[T]
	name   string
	value  T
	seq    uint64
}

// New creates a root holding initial and registers it with cx. It panics if
// T has no trace policy or initial is not a valid T.
func New[T any](cx *Context, initial T) *Rooted[T] {
	return NewNamed(cx, "", initial)
}

// NewZero creates a root holding the zero T.
func NewZero[T any](cx *Context) *Rooted[T] {
	var zero T
	return NewNamed(cx, "", zero)
}

// NewNamed is New with a debug name reported to tracers.
func NewNamed[T any](cx *Context, name string, initial T) *Rooted[T] {
	p, err := trace.PolicyFor[T]()
	if err != nil {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Cause(err).
			Detail("cannot root a type without a trace policy").
			Build())
	}
	if checks && !p.IsValid(initial) {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(name).
			Detail("initial value is not valid").
			Build())
	}
	if name == "" {
		name = "rooted " + trace.TypeName[T]()
	}
	r := &Rooted[T]{cx: cx, policy: p, name: name, value: initial}
	r.seq = cx.push(r)
	return r
}

func (r *Rooted[T]) live() {
	if r.seq == 0 {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(r.name).
			Detail("use of released root").
			Build())
	}
}

// Get returns the current value. A collection may have rewritten it since
// the last Get.
func (r *Rooted[T]) Get() T {
	r.live()
	return r.value
}

// Set replaces the value.
func (r *Rooted[T]) Set(v T) {
	r.live()
	if checks && !r.policy.IsValid(v) {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(r.name).
			Detail("stored value is not valid").
			Build())
	}
	r.value = v
}

// Ptr returns the address of the slot. The address is stable; the value at
// it may be rewritten by any collection.
func (r *Rooted[T]) Ptr() *T {
	r.live()
	return &r.value
}

// Handle returns a read-only handle to the root.
func (r *Rooted[T]) Handle() Handle[T] {
	r.live()
	return Handle[T]{p: &r.value, owner: r, seq: r.seq}
}

// Mut returns a mutable handle to the root.
func (r *Rooted[T]) Mut() MutableHandle[T] {
	return MutableHandle[T]{h: r.Handle()}
}

// Release unregisters the root. Roots must be released in reverse order of
// creation.
func (r *Rooted[T]) Release() {
	r.live()
	r.cx.pop(r, r.seq)
	r.seq = 0
	var zero T
	r.value = zero
}

// Released reports whether Release has been called.
func (r *Rooted[T]) Released() bool { return r.seq == 0 }

// TraceRoot traces the slot.
func (r *Rooted[T]) TraceRoot(trc trace.Tracer) {
	r.policy.Trace(trc, &r.value, r.name)
}

func (r *Rooted[T]) alive(seq uint64) bool { return r.seq != 0 && r.seq == seq }
