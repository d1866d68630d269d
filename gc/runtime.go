package gc

import (
	stderrors "errors"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
	"github.com/wippyai/gcroot/zeal"
)

// RootSource is a set of roots traced at the start of every collection,
// when marking finishes, and during relocation. root.Context implements it
// for its stack roots.
type RootSource interface {
	TraceRoots(trc trace.Tracer)
}

// PersistentNode is a root registered in the runtime's permanent root set.
type PersistentNode interface {
	TraceRoot(trc trace.Tracer)
	// Describe returns the Go type and debug label of the root, used in the
	// shutdown leak report.
	Describe() (goType, label string)
}

// State is the lifecycle state of a runtime.
type State uint8

const (
	StateRunning State = iota
	StateShutdown
)

func (s State) String() string {
	if s == StateShutdown {
		return "shutdown"
	}
	return "running"
}

// Runtime owns a managed heap and its collector.
type Runtime struct {
	log   *zap.Logger
	zeal  *zeal.Scheduler
	cfg   Config
	state State
	zone  uint8
	epoch uint8

	classes classTable

	nursery    []*Object
	nurseryGen uint16

	tenured     []*Object
	tenuredGens []uint16
	free        []uint32
	tenuredLive int

	nextID uint64

	sources    []RootSource
	persistent map[PersistentNode]struct{}
	weak       map[weakNode]struct{}

	storeBuffer map[any]func(trace.Tracer)
	wholeCells  map[*Object]struct{}

	marking        *markState
	gray           []*Object
	sweeping       bool
	collecting     bool
	inFinalize     bool
	liveAfterMajor int

	bg          sync.WaitGroup
	bgFinalized atomic.Uint64

	stats Stats
}

var (
	zonesMu sync.RWMutex
	zones   [value.MaxZones + 1]*Runtime
)

func allocZone(rt *Runtime) (uint8, bool) {
	zonesMu.Lock()
	defer zonesMu.Unlock()
	for i := 1; i < len(zones); i++ {
		if zones[i] == nil {
			zones[i] = rt
			return uint8(i), true
		}
	}
	return 0, false
}

func freeZone(z uint8) {
	zonesMu.Lock()
	defer zonesMu.Unlock()
	zones[z] = nil
}

// runtimeFor returns the runtime that owns r, or nil.
func runtimeFor(r value.Ref) *Runtime {
	if r.IsNull() {
		return nil
	}
	zonesMu.RLock()
	defer zonesMu.RUnlock()
	return zones[r.Zone()]
}

// New creates a running runtime. An empty cfg.Zeal reads the zeal setting
// from the environment.
func New(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		settings zeal.Settings
		err      error
	)
	if cfg.Zeal != "" {
		settings, err = zeal.Parse(cfg.Zeal)
	} else {
		settings, err = zeal.FromEnv()
	}
	if err != nil {
		if stderrors.Is(err, zeal.ErrHelp) {
			return nil, err
		}
		return nil, errors.Wrap(errors.PhaseZeal, errors.KindInvalidInput, err, "zeal setting")
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	rt := &Runtime{
		log:         log,
		cfg:         cfg,
		classes:     newClassTable(),
		persistent:  make(map[PersistentNode]struct{}),
		weak:        make(map[weakNode]struct{}),
		storeBuffer: make(map[any]func(trace.Tracer)),
		wholeCells:  make(map[*Object]struct{}),
	}
	zone, ok := allocZone(rt)
	if !ok {
		return nil, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("all %d zones in use", value.MaxZones).
			Build()
	}
	rt.zone = zone
	rt.log = log.With(zap.Uint8("zone", zone))
	rt.zeal = zeal.NewScheduler(settings)

	rt.log.Debug("runtime started",
		zap.Int("nursery_capacity", cfg.NurseryCapacity),
		zap.Stringer("zeal", settings))
	return rt, nil
}

// State returns the lifecycle state.
func (rt *Runtime) State() State { return rt.state }

// Running reports whether the runtime accepts allocations and roots.
func (rt *Runtime) Running() bool { return rt != nil && rt.state == StateRunning }

// Zeal returns the active zeal scheduler.
func (rt *Runtime) Zeal() *zeal.Scheduler { return rt.zeal }

// Log returns the runtime's logger.
func (rt *Runtime) Log() *zap.Logger { return rt.log }

// Config returns the configuration the runtime was created with.
func (rt *Runtime) Config() Config { return rt.cfg }

// violation logs and panics. Protocol violations are not recoverable.
func (rt *Runtime) violation(err *errors.Error) {
	rt.log.Error("protocol violation", zap.Error(err))
	panic(err)
}

// Deref resolves r to its object. It fails for null, foreign, reclaimed and
// stale references.
func (rt *Runtime) Deref(r value.Ref) (*Object, bool) {
	if r.IsNull() || r.Zone() != rt.zone {
		return nil, false
	}
	idx := r.Index()
	if r.Space() == value.SpaceNursery {
		if r.Gen() != rt.nurseryGen || int(idx) >= len(rt.nursery) {
			return nil, false
		}
		obj := rt.nursery[idx]
		return obj, obj != nil && !obj.dead
	}
	if r.Epoch() != rt.epoch || int(idx) >= len(rt.tenured) || rt.tenuredGens[idx] != r.Gen() {
		return nil, false
	}
	obj := rt.tenured[idx]
	return obj, obj != nil
}

// MustDeref is Deref that panics with a dangling-reference error.
func (rt *Runtime) MustDeref(r value.Ref) *Object {
	obj, ok := rt.Deref(r)
	if !ok {
		rt.violation(errors.New(errors.PhaseCollect, errors.KindProtocolViolation).
			Cause(errors.Dangling(errors.PhaseCollect, r)).
			Detail("dereference of unrooted or reclaimed object").
			Build())
	}
	return obj
}

// LiveObjects returns the number of objects not yet reclaimed.
func (rt *Runtime) LiveObjects() int { return len(rt.nursery) + rt.tenuredLive }

// FindByID returns the live object with identity id. It scans the heap and is
// meant for tests and diagnostics.
func (rt *Runtime) FindByID(id uint64) (*Object, bool) {
	for _, obj := range rt.nursery {
		if obj != nil && obj.id == id && !obj.dead {
			return obj, true
		}
	}
	for _, obj := range rt.tenured {
		if obj != nil && obj.id == id {
			return obj, true
		}
	}
	return nil, false
}

// AddRootSource registers a stack root source.
func (rt *Runtime) AddRootSource(src RootSource) {
	rt.sources = append(rt.sources, src)
}

// RemoveRootSource unregisters src.
func (rt *Runtime) RemoveRootSource(src RootSource) {
	for i, s := range rt.sources {
		if s == src {
			rt.sources = append(rt.sources[:i], rt.sources[i+1:]...)
			return
		}
	}
}

// AddPersistent registers n in the permanent root set. The runtime must be
// running.
func (rt *Runtime) AddPersistent(n PersistentNode) error {
	if !rt.Running() {
		return errors.NotInitialized(errors.PhaseRoot, "collector")
	}
	rt.persistent[n] = struct{}{}
	return nil
}

// RemovePersistent unregisters n.
func (rt *Runtime) RemovePersistent(n PersistentNode) {
	delete(rt.persistent, n)
}

// PersistentCount returns the number of registered persistent roots.
func (rt *Runtime) PersistentCount() int { return len(rt.persistent) }

// OnRootsChange runs any collection the zeal scheduler requests when a stack
// root is pushed or popped.
func (rt *Runtime) OnRootsChange() {
	if rt.collecting || rt.inFinalize || !rt.Running() {
		return
	}
	if a := rt.zeal.OnRootsChange(); a != zeal.ActionNone {
		rt.runZeal(a)
	}
}

// traceRoots visits stack roots and persistent roots.
func (rt *Runtime) traceRoots(trc trace.Tracer) {
	for _, src := range rt.sources {
		src.TraceRoots(trc)
	}
	for n := range rt.persistent {
		n.TraceRoot(trc)
	}
}

// Shutdown finalizes every remaining object and releases the runtime's zone.
// Persistent roots still registered, or contexts still attached, are fatal:
// Shutdown panics with the combined report.
func (rt *Runtime) Shutdown() {
	if rt.state == StateShutdown {
		return
	}

	var err error
	if len(rt.persistent) > 0 {
		leaked := &errors.LeakedRootsError{}
		for n := range rt.persistent {
			goType, label := n.Describe()
			leaked.Roots = append(leaked.Roots, errors.LeakedRoot{GoType: goType, Label: label})
		}
		err = multierr.Append(err, leaked)
	}
	if len(rt.sources) > 0 {
		err = multierr.Append(err, errors.Violation(errors.PhaseShutdown,
			"%d root context(s) still attached", len(rt.sources)))
	}
	if err != nil {
		rt.log.Error("fatal shutdown hazard", zap.Error(err))
		panic(err)
	}

	if rt.marking != nil {
		rt.finishMarking(false)
	}
	rt.collectMajor(false, "shutdown")
	rt.bg.Wait()

	rt.state = StateShutdown
	freeZone(rt.zone)
	rt.log.Debug("runtime shut down", zap.Uint64("collections", rt.stats.Collections()))
}
