// Package trace provides the visitor the collector uses to discover edges.
//
// Every higher-level trace method funnels into a single primitive:
//
//	trace.Edge(trc, &ref, "label")
//
// Edge hands the address of a Ref to the Tracer. A marking tracer reads it,
// a moving tracer may rewrite it in place. Any Go storage that holds a
// managed reference must be visited through Edge on every pass, otherwise that
// reference is invisible to the collector.
//
// # Types that know how to trace themselves
//
// A struct that holds managed references implements Traceable:
//
//	type SafeBox struct {
//	    stashed   gc.Heap[value.Value]
//	    container []gc.Heap[value.Value]
//	}
//
//	func (b *SafeBox) Trace(trc trace.Tracer) {
//	    b.stashed.Trace(trc, "stashed value")
//	    for i := range b.container {
//	        b.container[i].Trace(trc, "container value")
//	    }
//	}
//
// # Types that cannot be edited
//
// For types whose definition cannot be changed, register an out-of-line
// Policy. Resolution in PolicyFor checks the registry first, then Traceable
// on *T, then Traceable on T itself (for pointer and interface types):
//
//	trace.Register[Wrapper](wrapperPolicy{})
//
// Pointer builds the pass-through policy for *U from the policy of U. A nil
// pointer has no edges, is never pending a sweep and is always valid.
package trace
