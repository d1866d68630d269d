package gc

import (
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

func init() {
	trace.Register[value.Ref](refPolicy{})
	trace.Register[value.Value](valuePolicy{})
}

// resolves reports whether r names a live object in a running runtime.
func resolves(r value.Ref) bool {
	rt := runtimeFor(r)
	if rt == nil {
		return false
	}
	_, ok := rt.Deref(r)
	return ok
}

// isDying reports whether the referent of r is gone or is about to be swept.
func isDying(r value.Ref) bool {
	if r.IsNull() {
		return false
	}
	rt := runtimeFor(r)
	if rt == nil {
		return true
	}
	obj, ok := rt.Deref(r)
	if !ok {
		return true
	}
	return rt.sweeping && !obj.marked && !r.InNursery()
}

type refPolicy struct{}

func (refPolicy) Trace(trc trace.Tracer, p *value.Ref, name string) { trace.Edge(trc, p, name) }
func (refPolicy) NeedsSweep(p *value.Ref) bool                      { return isDying(*p) }
func (refPolicy) IsValid(r value.Ref) bool                          { return r.IsNull() || resolves(r) }

type valuePolicy struct{}

func (valuePolicy) Trace(trc trace.Tracer, p *value.Value, name string) { trace.Value(trc, p, name) }

func (valuePolicy) NeedsSweep(p *value.Value) bool {
	return p.IsObject() && isDying(p.ToRef())
}

func (valuePolicy) IsValid(v value.Value) bool {
	return !v.IsObject() || resolves(v.ToRef())
}
