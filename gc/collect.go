package gc

import (
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

// Collection selects the kind of collection Collect runs.
type Collection uint8

const (
	// CollectMinor evicts the nursery.
	CollectMinor Collection = iota
	// CollectMajor marks and sweeps the whole heap.
	CollectMajor
	// CollectShrinking is a major collection followed by compaction.
	CollectShrinking
)

func (c Collection) String() string {
	switch c {
	case CollectMinor:
		return "minor"
	case CollectMajor:
		return "major"
	case CollectShrinking:
		return "shrinking"
	default:
		return "unknown"
	}
}

// Collect runs a collection now. An incremental collection in progress is
// finished first by major and shrinking collections.
func (rt *Runtime) Collect(c Collection, reason string) {
	if !rt.Running() {
		return
	}
	rt.checkSafePoint("collection")
	switch c {
	case CollectMinor:
		rt.collectMinor(reason)
	case CollectShrinking:
		rt.collectMajor(true, reason)
	default:
		rt.collectMajor(false, reason)
	}
}

// GC runs a full non-compacting collection.
func (rt *Runtime) GC() { rt.Collect(CollectMajor, "api") }

// enter marks the runtime as collecting and returns the function that
// restores the previous state.
func (rt *Runtime) enter() func() {
	saved := rt.collecting
	rt.collecting = true
	return func() { rt.collecting = saved }
}

func (rt *Runtime) danglingEdge(r value.Ref, name string) {
	rt.violation(errors.New(errors.PhaseCollect, errors.KindProtocolViolation).
		Label(name).
		Cause(errors.Dangling(errors.PhaseCollect, r)).
		Detail("traced edge does not resolve; a referent was collected while still referenced").
		Build())
}

// promoter moves reachable nursery objects into the tenured heap and rewrites
// every edge it visits to the new address.
type promoter struct {
	rt   *Runtime
	work []*Object
}

func (*promoter) Kind() trace.Kind { return trace.KindMoving }

func (p *promoter) OnEdge(ref *value.Ref, name string) {
	r := *ref
	rt := p.rt
	if !r.InNursery() || r.Zone() != rt.zone {
		return
	}
	if r.Gen() != rt.nurseryGen || int(r.Index()) >= len(rt.nursery) {
		rt.danglingEdge(r, name)
	}
	obj := rt.nursery[r.Index()]
	if obj.ref.InNursery() {
		rt.placeTenured(obj)
		if rt.marking != nil {
			rt.markGray(obj)
		}
		p.work = append(p.work, obj)
		rt.stats.Promoted++
	}
	*ref = obj.ref
}

// forwarder rewrites edges to already promoted nursery objects and leaves
// every other edge alone.
type forwarder struct{ rt *Runtime }

func (forwarder) Kind() trace.Kind { return trace.KindMoving }

func (f forwarder) OnEdge(ref *value.Ref, _ string) {
	r := *ref
	rt := f.rt
	if !r.InNursery() || r.Zone() != rt.zone || r.Gen() != rt.nurseryGen || int(r.Index()) >= len(rt.nursery) {
		return
	}
	if obj := rt.nursery[r.Index()]; !obj.ref.InNursery() {
		*ref = obj.ref
	}
}

// collectMinor evicts the nursery. Survivors are those reachable from roots,
// the store buffer and tenured objects holding nursery edges.
func (rt *Runtime) collectMinor(reason string) {
	if len(rt.nursery) == 0 {
		return
	}
	defer rt.enter()()

	p := &promoter{rt: rt}
	rt.traceRoots(p)
	for _, fn := range rt.storeBuffer {
		fn(p)
	}
	for obj := range rt.wholeCells {
		traceObject(p, obj)
	}
	for len(p.work) > 0 {
		obj := p.work[len(p.work)-1]
		p.work = p.work[:len(p.work)-1]
		traceObject(p, obj)
	}

	fw := forwarder{rt: rt}
	for w := range rt.weak {
		w.forward(fw)
	}

	total := len(rt.nursery)
	died := 0
	for _, obj := range rt.nursery {
		if obj.ref.InNursery() {
			obj.dead = true
			died++
		}
	}
	rt.nursery = make([]*Object, 0, rt.cfg.NurseryCapacity)
	rt.nurseryGen++
	clear(rt.storeBuffer)
	clear(rt.wholeCells)

	rt.sweepWeak()

	rt.stats.MinorGCs++
	rt.stats.Swept += uint64(died)
	rt.log.Debug("minor collection",
		zap.String("reason", reason),
		zap.Int("nursery", total),
		zap.Int("promoted", total-died))

	if rt.zeal.CheckHeap() {
		rt.checkHeap("minor")
	}
}

// marker marks tenured objects gray. Nursery edges are ignored: the nursery
// is evicted before marking finishes.
type marker struct{ rt *Runtime }

func (marker) Kind() trace.Kind { return trace.KindMarking }

func (m marker) OnEdge(ref *value.Ref, name string) {
	r := *ref
	rt := m.rt
	if r.IsNull() || r.InNursery() || r.Zone() != rt.zone {
		return
	}
	obj, ok := rt.Deref(r)
	if !ok {
		rt.danglingEdge(r, name)
	}
	rt.markGray(obj)
}

func (rt *Runtime) markGray(obj *Object) {
	if !obj.marked {
		obj.marked = true
		rt.gray = append(rt.gray, obj)
	}
}

// drain traces up to budget gray objects, or all of them when budget is
// negative. It reports whether the gray stack is empty.
func (rt *Runtime) drain(budget int) bool {
	m := marker{rt: rt}
	for n := 0; len(rt.gray) > 0 && (budget < 0 || n < budget); n++ {
		obj := rt.gray[len(rt.gray)-1]
		rt.gray = rt.gray[:len(rt.gray)-1]
		traceObject(m, obj)
	}
	return len(rt.gray) == 0
}

// collectMajor runs a complete non-incremental collection, or finishes the
// incremental one in progress.
func (rt *Runtime) collectMajor(compact bool, reason string) {
	if rt.marking != nil {
		rt.finishMarking(compact)
		return
	}
	defer rt.enter()()

	rt.collectMinor(reason)
	rt.marking = &markState{reason: reason}
	rt.traceRoots(marker{rt: rt})
	rt.drain(-1)
	rt.finishMarking(compact)
}

// finishMarking evicts the nursery, rescans roots, completes marking and
// sweeps.
func (rt *Runtime) finishMarking(compact bool) {
	defer rt.enter()()
	ms := rt.marking

	rt.collectMinor("finish marking")
	rt.traceRoots(marker{rt: rt})
	rt.drain(-1)

	if ms.snapshot != nil {
		rt.verifyPreBarriers(ms.snapshot)
	}
	if ms.incremental && rt.zeal.ValidateIncremental() {
		rt.validateMarking()
	}

	rt.marking = nil
	if ms.incremental {
		activeMarkings.Add(-1)
	}

	swept := rt.sweep()
	rt.stats.MajorGCs++
	rt.log.Debug("major collection",
		zap.String("reason", ms.reason),
		zap.Bool("incremental", ms.incremental),
		zap.Int("slices", ms.slices),
		zap.Int("swept", swept),
		zap.Int("live", rt.tenuredLive))

	if compact {
		rt.compact()
	}
	if rt.zeal.CheckHeap() {
		rt.checkHeap("major")
	}
}

// sweep reclaims unmarked tenured objects, finalizing those with a finalize
// hook, and clears the marks of the survivors.
func (rt *Runtime) sweep() int {
	rt.sweeping = true
	rt.sweepWeak()

	var background []*Object
	swept := 0
	for idx, obj := range rt.tenured {
		if obj == nil {
			continue
		}
		if obj.marked {
			obj.marked = false
			continue
		}
		if obj.class.Finalize != nil {
			if obj.finalized {
				rt.violation(errors.New(errors.PhaseFinalize, errors.KindProtocolViolation).
					Label(obj.class.Name).
					Detail("object %d finalized twice", obj.id).
					Build())
			}
			obj.finalized = true
			if obj.class.Locality == FinalizeBackground {
				background = append(background, obj)
			} else {
				rt.finalize(obj)
			}
		}
		obj.dead = true
		rt.freeTenured(uint32(idx))
		swept++
	}
	rt.sweeping = false

	rt.liveAfterMajor = rt.tenuredLive
	rt.stats.Swept += uint64(swept)
	if len(background) > 0 {
		rt.finalizeInBackground(background)
	}
	return swept
}

func (rt *Runtime) sweepWeak() {
	for w := range rt.weak {
		if w.sweep() {
			rt.stats.WeakCleared++
		}
	}
}

// compact rebuilds the tenured heap densely under a new epoch and rewrites
// every root, object edge and weak slot to the new addresses.
func (rt *Runtime) compact() {
	defer rt.enter()()

	fix := &fixup{
		rt:       rt,
		oldEpoch: rt.epoch,
		old:      rt.tenured,
		oldGens:  rt.tenuredGens,
	}

	live := make([]*Object, 0, rt.tenuredLive)
	for _, obj := range rt.tenured {
		if obj != nil {
			live = append(live, obj)
		}
	}
	rt.epoch = value.NextEpoch(rt.epoch)
	rt.tenured = live
	rt.tenuredGens = make([]uint16, len(live))
	rt.free = rt.free[:0]
	for i, obj := range live {
		obj.ref = value.MakeRef(rt.zone, value.SpaceTenured, rt.epoch, 0, uint32(i))
	}

	rt.traceRoots(fix)
	for _, obj := range live {
		traceObject(fix, obj)
	}
	for w := range rt.weak {
		w.forward(fix)
	}

	rt.stats.Compactions++
	rt.stats.Moved += uint64(len(live))
	rt.log.Debug("compaction", zap.Int("moved", len(live)), zap.Uint8("epoch", rt.epoch))
}

// fixup rewrites edges from the pre-compaction layout. Edges already in the
// new epoch are left alone, so visiting an edge twice is harmless.
type fixup struct {
	rt       *Runtime
	old      []*Object
	oldGens  []uint16
	oldEpoch uint8
}

func (*fixup) Kind() trace.Kind { return trace.KindMoving }

func (f *fixup) OnEdge(ref *value.Ref, name string) {
	r := *ref
	if r.IsNull() || r.InNursery() || r.Zone() != f.rt.zone || r.Epoch() == f.rt.epoch {
		return
	}
	idx := r.Index()
	if r.Epoch() != f.oldEpoch || int(idx) >= len(f.old) || f.oldGens[idx] != r.Gen() || f.old[idx] == nil {
		f.rt.danglingEdge(r, name)
	}
	*ref = f.old[idx].ref
}
