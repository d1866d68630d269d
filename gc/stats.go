package gc

// Stats counts collector activity since the runtime started.
type Stats struct {
	Allocations         uint64
	MinorGCs            uint64
	MajorGCs            uint64
	Compactions         uint64
	Slices              uint64
	Promoted            uint64
	Moved               uint64
	Finalized           uint64
	BackgroundFinalized uint64
	Swept               uint64
	WeakCleared         uint64
}

// Collections is the number of minor and major collections.
func (s Stats) Collections() uint64 { return s.MinorGCs + s.MajorGCs }

// Stats returns a snapshot of the counters.
func (rt *Runtime) Stats() Stats {
	s := rt.stats
	s.BackgroundFinalized = rt.bgFinalized.Load()
	return s
}
