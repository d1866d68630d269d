package gc

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

// walker computes reachability without touching mark bits.
type walker struct {
	rt      *Runtime
	visited map[*Object]struct{}
	work    []*Object
}

func (*walker) Kind() trace.Kind { return trace.KindCallback }

func (w *walker) OnEdge(ref *value.Ref, _ string) {
	obj, ok := w.rt.Deref(*ref)
	if !ok {
		return
	}
	if _, seen := w.visited[obj]; seen {
		return
	}
	w.visited[obj] = struct{}{}
	w.work = append(w.work, obj)
}

func (rt *Runtime) reachable() map[*Object]struct{} {
	w := &walker{rt: rt, visited: make(map[*Object]struct{})}
	rt.traceRoots(w)
	for len(w.work) > 0 {
		obj := w.work[len(w.work)-1]
		w.work = w.work[:len(w.work)-1]
		traceObject(w, obj)
	}
	return w.visited
}

func (rt *Runtime) reachableTenured() []*Object {
	var out []*Object
	for obj := range rt.reachable() {
		if !obj.ref.InNursery() {
			out = append(out, obj)
		}
	}
	return out
}

// verifyPreBarriers checks that every object reachable when marking started
// was marked. A miss means an edge was overwritten without a pre-write
// barrier.
func (rt *Runtime) verifyPreBarriers(snapshot []*Object) {
	for _, obj := range snapshot {
		if !obj.marked {
			rt.violation(errors.New(errors.PhaseBarrier, errors.KindProtocolViolation).
				Label(obj.class.Name).
				Detail("object %d reachable at marking start was not marked; missing pre-write barrier", obj.id).
				Build())
		}
	}
}

// validateMarking checks an incremental mark against a full reachability
// walk.
func (rt *Runtime) validateMarking() {
	for obj := range rt.reachable() {
		if !obj.marked {
			rt.violation(errors.New(errors.PhaseCollect, errors.KindProtocolViolation).
				Label(obj.class.Name).
				Detail("reachable object %d unmarked after incremental marking", obj.id).
				Build())
		}
	}
}

// checkHeap verifies that every edge from roots and live objects resolves.
func (rt *Runtime) checkHeap(after string) {
	chk := trace.Func(func(ref *value.Ref, name string) {
		if ref.Zone() != rt.zone {
			return
		}
		if _, ok := rt.Deref(*ref); !ok {
			rt.violation(errors.New(errors.PhaseCollect, errors.KindProtocolViolation).
				Label(name).
				Cause(errors.Dangling(errors.PhaseCollect, *ref)).
				Detail("heap check after %s collection", after).
				Build())
		}
	})
	rt.traceRoots(chk)
	for _, obj := range rt.nursery {
		traceObject(chk, obj)
	}
	for _, obj := range rt.tenured {
		if obj != nil {
			traceObject(chk, obj)
		}
	}
}
