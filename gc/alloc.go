package gc

import (
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/value"
	"github.com/wippyai/gcroot/zeal"
)

// NewObject allocates an object of class cls and returns its reference.
//
// NewObject is a safe point: zeal modes and heap heuristics may run a
// collection before the object exists, so every reference the caller still
// needs must be rooted. The returned Ref is unrooted; store it in a root
// before the next safe point.
func (rt *Runtime) NewObject(cls *Class) (value.Ref, error) {
	if !rt.Running() {
		return value.Null, errors.NotInitialized(errors.PhaseAlloc, "runtime")
	}
	rt.checkSafePoint("allocation")
	if !rt.classes.has(cls) {
		name := "<nil>"
		if cls != nil {
			name = cls.Name
		}
		return value.Null, errors.NotFound(errors.PhaseAlloc, "class", name)
	}

	nursery := cls.Finalize == nil && rt.cfg.NurseryCapacity > 0

	if a := rt.zeal.OnAlloc(nursery); a != zeal.ActionNone {
		rt.runZeal(a)
	}
	rt.maybeCollect(nursery)

	if limit := rt.cfg.MaxObjects; limit > 0 && rt.LiveObjects() >= limit {
		rt.collectMajor(false, "allocation limit")
		if rt.LiveObjects() >= limit {
			rt.log.Warn("allocation failed", zap.String("class", cls.Name), zap.Int("limit", limit))
			return value.Null, errors.AllocationFailed(errors.PhaseAlloc, limit)
		}
	}

	return rt.place(cls, nursery).ref, nil
}

// checkSafePoint rejects re-entry from trace and finalize hooks.
func (rt *Runtime) checkSafePoint(op string) {
	if rt.inFinalize {
		rt.violation(errors.Violation(errors.PhaseFinalize, "%s inside a finalize hook", op))
	}
	if rt.collecting {
		rt.violation(errors.Violation(errors.PhaseCollect, "%s during a collection", op))
	}
}

func (rt *Runtime) place(cls *Class, nursery bool) *Object {
	rt.nextID++
	obj := &Object{
		rt:    rt,
		class: cls,
		id:    rt.nextID,
		slots: make([]value.Value, cls.ReservedSlots),
	}
	if nursery {
		obj.ref = value.MakeRef(rt.zone, value.SpaceNursery, 0, rt.nurseryGen, uint32(len(rt.nursery)))
		rt.nursery = append(rt.nursery, obj)
	} else {
		rt.placeTenured(obj)
		// Allocated black while marking.
		obj.marked = rt.marking != nil
	}
	rt.stats.Allocations++
	return obj
}

func (rt *Runtime) placeTenured(obj *Object) {
	var idx uint32
	if n := len(rt.free); n > 0 {
		idx = rt.free[n-1]
		rt.free = rt.free[:n-1]
		rt.tenured[idx] = obj
	} else {
		idx = uint32(len(rt.tenured))
		rt.tenured = append(rt.tenured, obj)
		rt.tenuredGens = append(rt.tenuredGens, 0)
	}
	obj.ref = value.MakeRef(rt.zone, value.SpaceTenured, rt.epoch, rt.tenuredGens[idx], idx)
	rt.tenuredLive++
}

func (rt *Runtime) freeTenured(idx uint32) {
	rt.tenured[idx] = nil
	rt.tenuredGens[idx]++
	rt.free = append(rt.free, idx)
	rt.tenuredLive--
}

func (rt *Runtime) majorThreshold() int {
	next := int(float64(rt.liveAfterMajor) * rt.cfg.GrowthFactor)
	return max(next, rt.cfg.InitialThreshold)
}

func (rt *Runtime) sliceBudget() int {
	if b := rt.zeal.SliceBudget(); b > 0 {
		return b
	}
	return rt.cfg.SliceBudget
}

// maybeCollect applies the heap heuristics before an allocation.
func (rt *Runtime) maybeCollect(nursery bool) {
	if nursery && len(rt.nursery) >= rt.cfg.NurseryCapacity {
		rt.collectMinor("nursery full")
	}

	if ms := rt.marking; ms != nil {
		if ms.auto && rt.step(rt.sliceBudget()) {
			rt.finishMarking(rt.cfg.CompactOnMajor)
		}
		return
	}

	if rt.tenuredLive >= rt.majorThreshold() {
		if rt.cfg.Incremental {
			rt.startIncremental(true, "threshold")
			return
		}
		rt.collectMajor(rt.cfg.CompactOnMajor, "threshold")
	}
}

// runZeal performs the collections a zeal scheduler asked for.
func (rt *Runtime) runZeal(a zeal.Action) {
	switch {
	case a.Has(zeal.ActionSlice):
		rt.zealSlice()
	case a.Has(zeal.ActionVerifyPre):
		if rt.marking == nil {
			rt.startIncremental(false, "zeal verify")
		} else {
			rt.finishMarking(false)
		}
	}

	switch {
	case a.Has(zeal.ActionCompact):
		rt.collectMajor(true, "zeal")
	case a.Has(zeal.ActionMajor):
		rt.collectMajor(false, "zeal")
	case a.Has(zeal.ActionMinor):
		rt.collectMinor("zeal")
	}
}

func (rt *Runtime) zealSlice() {
	if rt.marking == nil {
		rt.startIncremental(false, "zeal slice")
		return
	}
	if rt.step(rt.sliceBudget()) {
		rt.finishMarking(false)
	}
}
