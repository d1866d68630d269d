// Package gc is the reference collector behind the rooting protocol.
//
// It manages a simulated heap of objects addressed by value.Ref. The
// collector is precise, generational, incremental and optionally compacting:
// any collection may move objects, and it rewrites every Ref it discovers.
// It discovers Refs only through tracing:
//
//	stack roots       root.Context registries (RootSource)
//	persistent roots  the runtime's persistent set (PersistentNode)
//	object edges      reserved slots holding object values, then the class
//	                  trace hook for native data the object refers to
//	store buffer      Heap[T] slots written with nursery references
//
// A Ref held anywhere else is invisible and becomes dangling at the next
// moving pass. Wrapping a Ref in Heap[T] does not keep it alive; only a trace
// path from a root does.
//
// # Collections
//
//	Minor      evict the nursery, promoting survivors to the tenured heap
//	Major      evict the nursery, mark from roots, sweep and finalize
//	Shrinking  Major followed by compaction of the tenured heap
//
// Major collections may also run incrementally: StartIncremental marks the
// roots, each Step marks a bounded number of objects, and FinishIncremental
// rescans the roots, sweeps and finalizes. Mutation between steps goes
// through Heap[T].Set and Object.SetReservedSlot, whose barriers keep the
// in-progress mark consistent.
//
// # Write barriers
//
// Both barriers run on every barriered write:
//
//   - pre-write: while incremental marking is in progress the overwritten
//     referent is marked (snapshot at the beginning).
//   - post-write: a nursery referent stored into tenured or native memory is
//     recorded in the store buffer so the next minor collection finds and
//     updates it.
//
// # Finalization
//
// Unreachable objects whose class has a Finalize hook are finalized exactly
// once. Foreground hooks run during the sweep; background hooks run on a
// separate goroutine and must not touch the runtime. Objects with finalizers
// are allocated directly in the tenured heap.
//
// # Thread Safety
//
// A Runtime and every root.Context attached to it belong to a single mutator
// goroutine. Collections only happen inside NewObject, Collect, the
// incremental entry points and, under zeal mode 1, root registration.
package gc
