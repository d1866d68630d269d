package zeal

import (
	"go.uber.org/zap"
)

// Action is a set of collections the scheduler asks the runtime to run.
type Action uint8

const (
	ActionMinor Action = 1 << iota
	ActionMajor
	ActionCompact
	ActionSlice
	ActionVerifyPre
)

const ActionNone Action = 0

func (a Action) Has(b Action) bool { return a&b != 0 }

// Scheduler counts allocations and root changes and decides when a zeal
// mode forces a collection. A nil *Scheduler is valid and always inert.
type Scheduler struct {
	settings Settings
	allocs   int
	nursery  int
	changes  int
	forced   int
}

// NewScheduler returns a scheduler for s.
func NewScheduler(s Settings) *Scheduler {
	if s.Enabled() {
		Logger().Info("zeal enabled", zap.Stringer("settings", s))
	}
	return &Scheduler{settings: s}
}

// Settings returns the active settings.
func (z *Scheduler) Settings() Settings {
	if z == nil {
		return Settings{}
	}
	return z.settings
}

// Enabled reports whether any mode is active.
func (z *Scheduler) Enabled() bool { return z != nil && z.settings.Enabled() }

// Has reports whether m is active.
func (z *Scheduler) Has(m Mode) bool { return z != nil && z.settings.Has(m) }

// Forced returns how many actions the scheduler has requested.
func (z *Scheduler) Forced() int {
	if z == nil {
		return 0
	}
	return z.forced
}

func (z *Scheduler) due(n int) bool {
	return n%z.settings.Frequency == 0
}

// OnAlloc is called before each allocation. nursery reports whether the
// object will be placed in the nursery.
func (z *Scheduler) OnAlloc(nursery bool) Action {
	if !z.Enabled() {
		return ActionNone
	}
	z.allocs++
	if nursery {
		z.nursery++
	}

	var a Action
	s := z.settings
	if s.Has(ModeGenerationalGC) && nursery && z.due(z.nursery) {
		a |= ActionMinor
	}
	if z.due(z.allocs) {
		if s.Has(ModeAlloc) {
			a |= ActionMajor
		}
		if s.Has(ModeCompact) {
			a |= ActionCompact
		}
		if s.Has(ModeIncrementalMultipleSlices) {
			a |= ActionSlice
		}
		if s.Has(ModeVerifierPre) {
			a |= ActionVerifyPre
		}
	}
	if a != ActionNone {
		z.forced++
	}
	return a
}

// OnRootsChange is called after a stack root is pushed or popped.
func (z *Scheduler) OnRootsChange() Action {
	if !z.Has(ModeRootsChange) {
		return ActionNone
	}
	z.changes++
	if !z.due(z.changes) {
		return ActionNone
	}
	z.forced++
	return ActionMajor
}

// SliceBudget is the number of objects an incremental slice marks under
// ModeIncrementalMultipleSlices. Small budgets force many slices.
func (z *Scheduler) SliceBudget() int {
	if z.Has(ModeIncrementalMultipleSlices) {
		return 1
	}
	return 0
}

// ValidateIncremental reports whether finished incremental marks should be
// checked against a full non-incremental mark.
func (z *Scheduler) ValidateIncremental() bool { return z.Has(ModeIncrementalMarkingValidator) }

// CheckHeap reports whether every edge should be checked after a collection.
func (z *Scheduler) CheckHeap() bool { return z.Has(ModeCheckHeapAfterGC) }
