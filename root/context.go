package root

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/gc"
	"github.com/wippyai/gcroot/trace"
)

// Context is a mutator execution context with its own stack root list. It
// is attached to a runtime as a root source until Close.
type Context struct {
	rt     *gc.Runtime
	roots  RootList
	closed bool
}

// NewContext attaches a new context to rt.
func NewContext(rt *gc.Runtime) (*Context, error) {
	if !rt.Running() {
		return nil, errors.NotInitialized(errors.PhaseRoot, "collector")
	}
	cx := &Context{rt: rt}
	rt.AddRootSource(cx)
	Logger().Debug("context attached")
	return cx, nil
}

// Runtime returns the runtime the context is attached to.
func (cx *Context) Runtime() *gc.Runtime { return cx.rt }

// Depth is the number of live stack roots.
func (cx *Context) Depth() int { return cx.roots.Len() }

// TraceRoots traces every live stack root.
func (cx *Context) TraceRoots(trc trace.Tracer) { cx.roots.TraceAll(trc) }

// Close detaches the context. Every root created for it must have been
// released.
func (cx *Context) Close() {
	if cx.closed {
		return
	}
	if !cx.roots.Empty() {
		violation(errors.Violation(errors.PhaseRoot, "context closed with %d live root(s)", cx.roots.Len()))
	}
	cx.closed = true
	cx.rt.RemoveRootSource(cx)
	Logger().Debug("context detached")
}

func (cx *Context) push(n Node) uint64 {
	if cx.closed {
		violation(errors.Violation(errors.PhaseRoot, "root created on a closed context"))
	}
	seq := cx.roots.Push(n)
	cx.rt.OnRootsChange()
	return seq
}

func (cx *Context) pop(n Node, seq uint64) {
	cx.roots.Pop(n, seq)
	cx.rt.OnRootsChange()
}
