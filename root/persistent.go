package root

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/gc"
	"github.com/wippyai/gcroot/trace"
)

// Persistent is a root registered directly in a runtime's persistent root
// set. Its lifetime is explicit: Init after the runtime is running, Reset
// before the runtime shuts down. The zero value is an empty placeholder.
//
// A Persistent keeps everything reachable from its value alive. Access from
// several goroutines needs external synchronization.
type Persistent[T any] struct {
	// Label names the root in traces and in the shutdown leak report.
	Label string

	rt     *gc.Runtime
	policy trace.Policy[T]
	value  T
	gen    uint64
}

// NewPersistent returns an initialized persistent root.
func NewPersistent[T any](rt *gc.Runtime, label string, initial T) (*Persistent[T], error) {
	p := &Persistent[T]{Label: label}
	if err := p.Init(rt, initial); err != nil {
		return nil, err
	}
	return p, nil
}

// Init registers the root with rt and stores initial. It fails if rt is not
// running. Initializing a root twice without Reset is a violation.
func (p *Persistent[T]) Init(rt *gc.Runtime, initial T) error {
	if p.rt != nil {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(p.Label).
			Detail("persistent root initialized twice").
			Build())
	}
	if !rt.Running() {
		return errors.NotInitialized(errors.PhaseRoot, "collector")
	}
	policy, err := trace.PolicyFor[T]()
	if err != nil {
		return err
	}
	if !policy.IsValid(initial) {
		return errors.New(errors.PhaseRoot, errors.KindInvalidInput).
			GoType(trace.TypeName[T]()).
			Label(p.Label).
			Detail("initial value is not valid").
			Build()
	}
	if p.Label == "" {
		p.Label = "persistent " + trace.TypeName[T]()
	}
	p.policy = policy
	p.value = initial
	if err := rt.AddPersistent(p); err != nil {
		return err
	}
	p.rt = rt
	p.gen++
	Logger().Debug("persistent root registered")
	return nil
}

// Initialized reports whether the root is registered.
func (p *Persistent[T]) Initialized() bool { return p.rt != nil }

func (p *Persistent[T]) live() {
	if p.rt == nil {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(p.Label).
			Detail("use of uninitialized persistent root").
			Build())
	}
}

// Get returns the current value.
func (p *Persistent[T]) Get() T {
	p.live()
	return p.value
}

// Set replaces the value.
func (p *Persistent[T]) Set(v T) {
	p.live()
	if checks && !p.policy.IsValid(v) {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			GoType(trace.TypeName[T]()).
			Label(p.Label).
			Detail("stored value is not valid").
			Build())
	}
	p.value = v
}

// Handle returns a read-only handle valid until the next Reset.
func (p *Persistent[T]) Handle() Handle[T] {
	p.live()
	return Handle[T]{p: &p.value, owner: p, seq: p.gen}
}

// Mut returns a mutable handle valid until the next Reset.
func (p *Persistent[T]) Mut() MutableHandle[T] {
	return MutableHandle[T]{h: p.Handle()}
}

// Reset unregisters the root and drops its value. Resetting an empty
// placeholder does nothing.
func (p *Persistent[T]) Reset() {
	if p.rt == nil {
		return
	}
	p.rt.RemovePersistent(p)
	p.rt = nil
	p.gen++
	var zero T
	p.value = zero
}

// TraceRoot traces the value.
func (p *Persistent[T]) TraceRoot(trc trace.Tracer) {
	p.policy.Trace(trc, &p.value, p.Label)
}

// Describe reports the root for the shutdown leak report.
func (p *Persistent[T]) Describe() (goType, label string) {
	return trace.TypeName[T](), p.Label
}

func (p *Persistent[T]) alive(seq uint64) bool { return p.rt != nil && p.gen == seq }
