package gc

import (
	"sync/atomic"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/value"
	"github.com/wippyai/gcroot/zeal"
)

// activeMarkings counts runtimes with incremental marking in progress. Heap
// barriers read it before resolving the owning runtime of an edge.
var activeMarkings atomic.Int32

type markState struct {
	// snapshot holds the tenured objects reachable when marking started, for
	// checking the pre-write barrier.
	snapshot    []*Object
	reason      string
	slices      int
	auto        bool
	incremental bool
}

// Marking reports whether an incremental collection is in progress.
func (rt *Runtime) Marking() bool { return rt.marking != nil }

// StartIncremental begins an incremental major collection. The mutator keeps
// running between Step calls; write barriers record the edges it overwrites.
func (rt *Runtime) StartIncremental() error {
	if !rt.Running() {
		return errors.NotInitialized(errors.PhaseCollect, "runtime")
	}
	rt.checkSafePoint("incremental start")
	if rt.marking != nil {
		return errors.InvalidInput(errors.PhaseCollect, "incremental collection already in progress")
	}
	rt.startIncremental(false, "api")
	return nil
}

// Step marks up to budget objects. It reports whether marking has no work
// left, in which case FinishIncremental only needs to rescan roots.
func (rt *Runtime) Step(budget int) bool {
	if rt.marking == nil {
		return true
	}
	rt.checkSafePoint("incremental step")
	if budget <= 0 {
		budget = rt.sliceBudget()
	}
	return rt.step(budget)
}

// FinishIncremental completes the incremental collection in progress. It is
// a no-op when none is.
func (rt *Runtime) FinishIncremental() {
	if rt.marking == nil {
		return
	}
	rt.checkSafePoint("incremental finish")
	rt.finishMarking(rt.cfg.CompactOnMajor)
}

func (rt *Runtime) startIncremental(auto bool, reason string) {
	defer rt.enter()()

	rt.collectMinor(reason)
	ms := &markState{
		reason:      reason,
		auto:        auto,
		incremental: true,
	}
	if rt.zeal.Has(zeal.ModeVerifierPre) {
		ms.snapshot = rt.reachableTenured()
	}
	rt.marking = ms
	activeMarkings.Add(1)
	rt.traceRoots(marker{rt: rt})
}

func (rt *Runtime) step(budget int) bool {
	defer rt.enter()()
	rt.marking.slices++
	rt.stats.Slices++
	return rt.drain(budget)
}

// preBarrierRef marks the referent of an overwritten edge so that everything
// reachable when marking started stays marked.
func (rt *Runtime) preBarrierRef(r value.Ref) {
	if r.IsNull() || r.InNursery() || r.Zone() != rt.zone {
		return
	}
	if obj, ok := rt.Deref(r); ok {
		rt.markGray(obj)
	}
}
