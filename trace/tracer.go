package trace

import (
	"github.com/wippyai/gcroot/value"
)

// Kind tells a trace method what the tracer intends to do with an edge.
type Kind uint8

const (
	// KindMarking tracers only read edges.
	KindMarking Kind = iota
	// KindMoving tracers may rewrite the visited Ref.
	KindMoving
	// KindCallback tracers hand edges to arbitrary code (validators, tests).
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindMarking:
		return "marking"
	case KindMoving:
		return "moving"
	case KindCallback:
		return "callback"
	}
	return "unknown"
}

// Tracer visits edges. OnEdge is called at most once per edge per pass by
// well-behaved trace methods, but implementations must tolerate repeats.
// Edge order is unspecified.
type Tracer interface {
	OnEdge(ref *value.Ref, name string)
	Kind() Kind
}

// Edge is the generic trace entry point. Null refs are skipped.
func Edge(trc Tracer, ref *value.Ref, name string) {
	if ref == nil || ref.IsNull() {
		return
	}
	trc.OnEdge(ref, name)
}

// Value traces the object payload of v, if any.
func Value(trc Tracer, v *value.Value, name string) {
	if p := v.RefPtr(); p != nil {
		Edge(trc, p, name)
	}
}

// Values traces every element of vs.
func Values(trc Tracer, vs []value.Value, name string) {
	for i := range vs {
		Value(trc, &vs[i], name)
	}
}

// Func adapts a function to a callback Tracer.
type Func func(ref *value.Ref, name string)

func (f Func) OnEdge(ref *value.Ref, name string) { f(ref, name) }
func (Func) Kind() Kind                           { return KindCallback }

// EdgeRecord is one edge seen by a Collector.
type EdgeRecord struct {
	Slot *value.Ref
	Name string
	Ref  value.Ref
}

// Collector records every edge it is shown.
type Collector struct {
	Edges []EdgeRecord
}

func (c *Collector) OnEdge(ref *value.Ref, name string) {
	c.Edges = append(c.Edges, EdgeRecord{Slot: ref, Name: name, Ref: *ref})
}

func (*Collector) Kind() Kind { return KindCallback }

// Refs returns the referents seen so far.
func (c *Collector) Refs() []value.Ref {
	out := make([]value.Ref, len(c.Edges))
	for i, e := range c.Edges {
		out[i] = e.Ref
	}
	return out
}

// Reset drops recorded edges, keeping capacity.
func (c *Collector) Reset() { c.Edges = c.Edges[:0] }
