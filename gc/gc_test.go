package gc

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

// refRoots is a minimal root source for collector tests.
type refRoots struct {
	refs []value.Ref
}

func (r *refRoots) TraceRoots(trc trace.Tracer) {
	for i := range r.refs {
		trace.Edge(trc, &r.refs[i], "test root")
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Zeal = "0"
	cfg.NurseryCapacity = 16
	return cfg
}

func newTestRuntime(t *testing.T, cfg Config, classes ...*Class) (*Runtime, *refRoots) {
	t.Helper()
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, c := range classes {
		if err := rt.RegisterClass(c); err != nil {
			t.Fatalf("RegisterClass(%s): %v", c.Name, err)
		}
	}
	roots := &refRoots{}
	rt.AddRootSource(roots)
	t.Cleanup(func() {
		rt.RemoveRootSource(roots)
		clear(rt.persistent)
		rt.collecting, rt.inFinalize, rt.sweeping = false, false, false
		defer func() {
			// A test that panicked mid-sweep leaves the heap inconsistent.
			if recover() != nil {
				freeZone(rt.zone)
			}
		}()
		rt.Shutdown()
	})
	return rt, roots
}

func mustAlloc(t *testing.T, rt *Runtime, c *Class) value.Ref {
	t.Helper()
	ref, err := rt.NewObject(c)
	if err != nil {
		t.Fatalf("NewObject(%s): %v", c.Name, err)
	}
	return ref
}

func idOf(rt *Runtime, r value.Ref) uint64 { return rt.MustDeref(r).ID() }

func expectViolation(t *testing.T, fn func()) *errors.Error {
	t.Helper()
	var got *errors.Error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(*errors.Error)
			if !ok {
				t.Fatalf("panic value %T is not *errors.Error: %v", r, r)
			}
			got = err
		}()
		fn()
	}()
	if got == nil {
		t.Fatal("expected a protocol violation")
	}
	if !errors.IsViolation(got) {
		t.Fatalf("expected protocol violation, got %v", got)
	}
	return got
}

var (
	nodeClass  = &Class{Name: "Node", ReservedSlots: 2}
	plainClass = &Class{Name: "Plain"}
)

func TestRegisterClass(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig())

	tests := []struct {
		name    string
		class   *Class
		wantErr bool
	}{
		{"valid", &Class{Name: "A", ReservedSlots: 3}, false},
		{"nil", nil, true},
		{"empty name", &Class{}, true},
		{"too many slots", &Class{Name: "B", ReservedSlots: MaxReservedSlots + 1}, true},
		{"background without hook", &Class{Name: "C", Locality: FinalizeBackground}, true},
		{"duplicate name", &Class{Name: "A"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rt.RegisterClass(tt.class)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RegisterClass() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if c, ok := rt.LookupClass("A"); !ok || c.ReservedSlots != 3 {
		t.Errorf("LookupClass(A) = %v, %v", c, ok)
	}
}

func TestNewObjectUnregisteredClass(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig())
	_, err := rt.NewObject(plainClass)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindNotFound}) {
		t.Fatalf("NewObject() error = %v, want alloc/not_found", err)
	}
}

func TestMinorPromotesReachable(t *testing.T) {
	rt, roots := newTestRuntime(t, testConfig(), nodeClass)

	a := mustAlloc(t, rt, nodeClass)
	b := mustAlloc(t, rt, nodeClass)
	c := mustAlloc(t, rt, nodeClass)
	rt.MustDeref(a).SetReservedSlot(0, value.Object(b))
	roots.refs = append(roots.refs, a)

	idA, idB, idC := idOf(rt, a), idOf(rt, b), idOf(rt, c)

	rt.Collect(CollectMinor, "test")

	moved := roots.refs[0]
	if moved.InNursery() {
		t.Fatalf("root still points into the nursery: %v", moved)
	}
	if _, ok := rt.Deref(a); ok {
		t.Error("pre-collection nursery ref still resolves")
	}
	objA := rt.MustDeref(moved)
	if objA.ID() != idA {
		t.Errorf("root ID = %d, want %d", objA.ID(), idA)
	}
	objB, ok := rt.Deref(objA.ReservedSlot(0).ToRef())
	if !ok || objB.ID() != idB {
		t.Errorf("slot edge not rewritten to promoted object %d", idB)
	}
	if _, ok := rt.FindByID(idC); ok {
		t.Error("unreachable nursery object survived")
	}
	if got := rt.Stats().Promoted; got != 2 {
		t.Errorf("Promoted = %d, want 2", got)
	}
}

func TestWholeCellBarrier(t *testing.T) {
	rt, roots := newTestRuntime(t, testConfig(), nodeClass)

	roots.refs = append(roots.refs, mustAlloc(t, rt, nodeClass))
	rt.Collect(CollectMinor, "tenure")
	if roots.refs[0].InNursery() {
		t.Fatal("expected tenured root")
	}

	young := mustAlloc(t, rt, nodeClass)
	idYoung := idOf(rt, young)
	rt.MustDeref(roots.refs[0]).SetReservedSlot(1, value.Object(young))

	rt.Collect(CollectMinor, "test")

	got, ok := rt.Deref(rt.MustDeref(roots.refs[0]).ReservedSlot(1).ToRef())
	if !ok || got.ID() != idYoung {
		t.Fatal("nursery object stored in a tenured slot was not kept or not forwarded")
	}
}

type nativeBox struct {
	field Heap[value.Value]
}

func traceBox(trc trace.Tracer, obj *Object) {
	if b, ok := obj.Private(0).(*nativeBox); ok {
		b.field.Trace(trc, "box field")
	}
}

func TestHeapSlotStoreBuffer(t *testing.T) {
	boxClass := &Class{Name: "Box", ReservedSlots: 1, Trace: traceBox}
	rt, roots := newTestRuntime(t, testConfig(), boxClass, plainClass)

	box := &nativeBox{}
	ref := mustAlloc(t, rt, boxClass)
	rt.MustDeref(ref).SetReservedSlot(0, value.Private(box))
	roots.refs = append(roots.refs, ref)
	rt.Collect(CollectMinor, "tenure")

	young := mustAlloc(t, rt, plainClass)
	idYoung := idOf(rt, young)
	box.field.Set(value.Object(young))
	if len(rt.storeBuffer) != 1 {
		t.Fatalf("store buffer has %d entries, want 1", len(rt.storeBuffer))
	}

	rt.Collect(CollectMinor, "test")

	got, ok := rt.Deref(box.field.Get().ToRef())
	if !ok || got.ID() != idYoung {
		t.Fatal("heap slot referent lost across minor collection")
	}
	if len(rt.storeBuffer) != 0 {
		t.Error("store buffer not cleared")
	}
}

func TestOmittedTraceHookCollectsReferent(t *testing.T) {
	// The class stores a nativeBox but never traces it.
	leakyClass := &Class{Name: "Leaky", ReservedSlots: 1}
	rt, roots := newTestRuntime(t, testConfig(), leakyClass, plainClass)

	box := &nativeBox{}
	ref := mustAlloc(t, rt, leakyClass)
	rt.MustDeref(ref).SetReservedSlot(0, value.Private(box))
	roots.refs = append(roots.refs, ref)

	target := mustAlloc(t, rt, plainClass)
	id := idOf(rt, target)
	box.field.Set(value.Object(target))

	rt.GC()

	if _, ok := rt.FindByID(id); ok {
		t.Fatal("referent held only by an untraced heap slot survived")
	}
	if _, ok := rt.Deref(box.field.Get().ToRef()); ok {
		t.Fatal("untraced heap slot still resolves")
	}
}

func TestCompactionPreservesIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.NurseryCapacity = 0
	rt, roots := newTestRuntime(t, cfg, nodeClass)

	var kept []value.Ref
	for i := 0; i < 6; i++ {
		ref := mustAlloc(t, rt, nodeClass)
		if i%2 == 1 {
			kept = append(kept, ref)
		}
	}
	roots.refs = append(roots.refs, kept...)
	rt.MustDeref(roots.refs[0]).SetReservedSlot(0, value.Object(roots.refs[2]))

	ids := make([]uint64, len(roots.refs))
	before := make([]value.Ref, len(roots.refs))
	for i, r := range roots.refs {
		ids[i] = idOf(rt, r)
		before[i] = r
	}

	rt.Collect(CollectShrinking, "test")

	for i, r := range roots.refs {
		if r == before[i] {
			t.Errorf("root %d was not relocated", i)
		}
		if got := idOf(rt, r); got != ids[i] {
			t.Errorf("root %d ID = %d, want %d", i, got, ids[i])
		}
		if _, ok := rt.Deref(before[i]); ok {
			t.Errorf("stale ref %v still resolves", before[i])
		}
	}
	edge := rt.MustDeref(roots.refs[0]).ReservedSlot(0).ToRef()
	if edge != roots.refs[2] {
		t.Errorf("object edge = %v, want %v", edge, roots.refs[2])
	}
	if st := rt.Stats(); st.Compactions != 1 || st.Moved != 3 {
		t.Errorf("Compactions = %d, Moved = %d", st.Compactions, st.Moved)
	}
}

func TestFinalizeOnce(t *testing.T) {
	var calls int
	finClass := &Class{
		Name:     "Fin",
		Finalize: func(fc *FinalizeContext, obj *Object) { calls++ },
	}
	rt, roots := newTestRuntime(t, testConfig(), finClass)

	ref := mustAlloc(t, rt, finClass)
	if ref.InNursery() {
		t.Fatal("objects with finalizers must be allocated tenured")
	}
	roots.refs = append(roots.refs, ref)
	rt.GC()
	if calls != 0 {
		t.Fatalf("finalized while reachable")
	}

	obj := rt.MustDeref(ref)
	roots.refs = roots.refs[:0]
	rt.GC()
	rt.GC()

	if calls != 1 {
		t.Fatalf("finalize ran %d times, want 1", calls)
	}
	if !obj.Dead() {
		t.Error("finalized object not marked dead")
	}
}

func TestBackgroundFinalize(t *testing.T) {
	done := make(chan bool, 1)
	bgClass := &Class{
		Name:     "Bg",
		Locality: FinalizeBackground,
		Finalize: func(fc *FinalizeContext, obj *Object) { done <- fc.OnBackgroundThread() },
	}
	rt, _ := newTestRuntime(t, testConfig(), bgClass)

	mustAlloc(t, rt, bgClass)
	rt.GC()
	rt.WaitBackgroundFinalize()

	if !<-done {
		t.Error("background hook reported foreground context")
	}
	if got := rt.Stats().BackgroundFinalized; got != 1 {
		t.Errorf("BackgroundFinalized = %d, want 1", got)
	}
}

func TestAllocateInFinalizerViolates(t *testing.T) {
	badClass := &Class{
		Name: "Bad",
		Finalize: func(fc *FinalizeContext, obj *Object) {
			_, _ = fc.Runtime().NewObject(plainClass)
		},
	}
	rt, _ := newTestRuntime(t, testConfig(), badClass, plainClass)

	mustAlloc(t, rt, badClass)
	err := expectViolation(t, rt.GC)
	if err.Phase != errors.PhaseFinalize {
		t.Errorf("Phase = %s, want finalize", err.Phase)
	}
}

func TestAllocationLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxObjects = 2
	rt, roots := newTestRuntime(t, cfg, plainClass)

	roots.refs = append(roots.refs, mustAlloc(t, rt, plainClass), mustAlloc(t, rt, plainClass))

	_, err := rt.NewObject(plainClass)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindAllocation}) {
		t.Fatalf("NewObject() error = %v, want allocation failure", err)
	}

	roots.refs = roots.refs[:1]
	if _, err := rt.NewObject(plainClass); err != nil {
		t.Fatalf("NewObject() after freeing a root: %v", err)
	}
}

func TestIncrementalPreWriteBarrier(t *testing.T) {
	cfg := testConfig()
	cfg.NurseryCapacity = 0
	cfg.Zeal = "11"
	rt, roots := newTestRuntime(t, cfg, nodeClass)

	a := mustAlloc(t, rt, nodeClass)
	b := mustAlloc(t, rt, nodeClass)
	rt.MustDeref(a).SetReservedSlot(0, value.Object(b))
	roots.refs = append(roots.refs, a)
	idB := idOf(rt, b)

	if err := rt.StartIncremental(); err != nil {
		t.Fatalf("StartIncremental: %v", err)
	}
	if err := rt.StartIncremental(); err == nil {
		t.Fatal("second StartIncremental succeeded")
	}

	// c is allocated black, so marking never scans it. Moving the only edge
	// to b from unscanned a into c is safe only because of the pre-write
	// barrier on a's slot.
	c := mustAlloc(t, rt, nodeClass)
	roots.refs = append(roots.refs, c)
	rt.MustDeref(c).SetReservedSlot(0, rt.MustDeref(a).ReservedSlot(0))
	rt.MustDeref(a).SetReservedSlot(0, value.NullValue())

	for !rt.Step(1) {
	}
	rt.FinishIncremental()

	if rt.Marking() {
		t.Fatal("marking still in progress")
	}
	got, ok := rt.Deref(rt.MustDeref(roots.refs[1]).ReservedSlot(0).ToRef())
	if !ok || got.ID() != idB {
		t.Fatal("object moved behind the marker was swept")
	}
	if rt.Stats().Slices == 0 {
		t.Error("no slices recorded")
	}
}

func TestWeakSlot(t *testing.T) {
	rt, roots := newTestRuntime(t, testConfig(), plainClass)

	kept := mustAlloc(t, rt, plainClass)
	roots.refs = append(roots.refs, kept)
	strong, err := NewWeak(rt, value.Object(kept))
	if err != nil {
		t.Fatalf("NewWeak: %v", err)
	}
	defer strong.Release()

	lost, err := NewWeak(rt, value.Object(mustAlloc(t, rt, plainClass)))
	if err != nil {
		t.Fatalf("NewWeak: %v", err)
	}
	defer lost.Release()

	rt.Collect(CollectMinor, "test")

	if got := strong.Get().ToRef(); got != roots.refs[0] {
		t.Errorf("weak slot = %v, want forwarded %v", got, roots.refs[0])
	}
	if !lost.Get().IsUndefined() {
		t.Errorf("weak slot to dead object = %v, want cleared", lost.Get())
	}

	rt.Collect(CollectShrinking, "test")
	if got := strong.Get().ToRef(); got != roots.refs[0] {
		t.Errorf("weak slot after compaction = %v, want %v", got, roots.refs[0])
	}

	roots.refs = roots.refs[:0]
	rt.GC()
	if !strong.Get().IsUndefined() {
		t.Error("weak slot kept its referent alive")
	}
	if rt.Stats().WeakCleared != 2 {
		t.Errorf("WeakCleared = %d, want 2", rt.Stats().WeakCleared)
	}
}

func TestWeakSliceClearsDeadElements(t *testing.T) {
	trace.Register(trace.Slice(trace.MustPolicyFor[value.Ref]()))

	tests := []struct {
		name    string
		tenured bool
	}{
		{"nursery", false},
		{"tenured", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, roots := newTestRuntime(t, testConfig(), plainClass)

			roots.refs = append(roots.refs, mustAlloc(t, rt, plainClass), mustAlloc(t, rt, plainClass))
			if tt.tenured {
				rt.GC()
			}
			w, err := NewWeak(rt, []value.Ref{roots.refs[0], roots.refs[1]})
			if err != nil {
				t.Fatalf("NewWeak: %v", err)
			}
			defer w.Release()
			keptID := idOf(rt, roots.refs[0])
			roots.refs = roots.refs[:1]

			rt.GC()
			got := w.Get()
			if len(got) != 2 || got[0] != roots.refs[0] || !got[1].IsNull() {
				t.Fatalf("weak slice after GC = %v, want [%v null]", got, roots.refs[0])
			}

			rt.Collect(CollectShrinking, "test")
			got = w.Get()
			if got[0] != roots.refs[0] || idOf(rt, got[0]) != keptID {
				t.Errorf("weak slice after compaction = %v, want %v", got, roots.refs[0])
			}
			if rt.Stats().WeakCleared != 1 {
				t.Errorf("WeakCleared = %d, want 1", rt.Stats().WeakCleared)
			}
		})
	}
}

// weakPair is a traceable struct without its own sweep logic.
type weakPair struct {
	a, b value.Value
}

func (p *weakPair) Trace(trc trace.Tracer) {
	trace.Value(trc, &p.a, "a")
	trace.Value(trc, &p.b, "b")
}

func TestWeakTraceableStructClearsDeadEdge(t *testing.T) {
	rt, roots := newTestRuntime(t, testConfig(), plainClass)

	kept := mustAlloc(t, rt, plainClass)
	roots.refs = append(roots.refs, kept)
	w, err := NewWeak(rt, weakPair{a: value.Object(kept), b: value.Object(mustAlloc(t, rt, plainClass))})
	if err != nil {
		t.Fatalf("NewWeak: %v", err)
	}
	defer w.Release()

	rt.GC()
	rt.Collect(CollectShrinking, "test")

	got := w.Get()
	if got.a.ToRef() != roots.refs[0] {
		t.Errorf("live edge = %v, want %v", got.a, roots.refs[0])
	}
	if !got.b.IsNull() || got.b.IsObject() {
		t.Errorf("dead edge = %v, want null", got.b)
	}
}

type fakePersistent struct{ label string }

func (*fakePersistent) TraceRoot(trace.Tracer)       {}
func (f *fakePersistent) Describe() (string, string) { return "gc.fakePersistent", f.label }

func TestShutdownLeakedPersistent(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.AddPersistent(&fakePersistent{label: "global"}); err != nil {
		t.Fatal(err)
	}

	var got any
	func() {
		defer func() { got = recover() }()
		rt.Shutdown()
	}()

	err, ok := got.(error)
	if !ok {
		t.Fatalf("Shutdown did not panic with an error: %v", got)
	}
	var leaked *errors.LeakedRootsError
	if !stderrors.As(err, &leaked) || len(leaked.Roots) != 1 || leaked.Roots[0].Label != "global" {
		t.Fatalf("panic = %v, want leaked root report", err)
	}

	clear(rt.persistent)
	rt.Shutdown()
	if rt.State() != StateShutdown {
		t.Error("runtime not shut down")
	}
	if err := rt.AddPersistent(&fakePersistent{}); err == nil {
		t.Error("AddPersistent after shutdown succeeded")
	}
}

func TestShutdownFinalizesEverything(t *testing.T) {
	var calls int
	finClass := &Class{Name: "Fin", Finalize: func(*FinalizeContext, *Object) { calls++ }}
	rt, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.RegisterClass(finClass); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := rt.NewObject(finClass); err != nil {
			t.Fatal(err)
		}
	}
	rt.Shutdown()
	if calls != 3 {
		t.Errorf("finalized %d objects at shutdown, want 3", calls)
	}
	if _, err := rt.NewObject(finClass); err == nil {
		t.Error("allocation after shutdown succeeded")
	}
}

// buildList allocates n nodes under zeal pressure, linking each to the
// previous head, plus one garbage object per node.
func buildList(t *testing.T, rt *Runtime, roots *refRoots, n int) {
	t.Helper()
	roots.refs = append(roots.refs[:0], value.Null)
	for i := 0; i < n; i++ {
		ref := mustAlloc(t, rt, nodeClass)
		obj := rt.MustDeref(ref)
		obj.SetReservedSlot(0, value.Object(roots.refs[0]))
		obj.SetReservedSlot(1, value.Int32(int32(i)))
		roots.refs[0] = ref
		mustAlloc(t, rt, plainClass)
	}
}

func checkList(t *testing.T, rt *Runtime, head value.Ref, n int) {
	t.Helper()
	want := int32(n - 1)
	for ref := head; !ref.IsNull(); {
		obj, ok := rt.Deref(ref)
		if !ok {
			t.Fatalf("list node %d does not resolve", want)
		}
		if got := obj.ReservedSlot(1).ToInt32(); got != want {
			t.Fatalf("list node = %d, want %d", got, want)
		}
		want--
		ref = obj.ReservedSlot(0).ToRef()
	}
	if want != -1 {
		t.Fatalf("list ended early at %d", want)
	}
}

func TestZealModesPreserveReachableGraph(t *testing.T) {
	tests := []struct {
		name string
		zeal string
	}{
		{"none", "0"},
		{"alloc", "2,3"},
		{"verify pre", "4,5"},
		{"generational", "7,2"},
		{"incremental slices", "10,1"},
		{"incremental validator", "10;11,2"},
		{"compact", "14,7"},
		{"check heap", "7;2;15,4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Zeal = tt.zeal
			cfg.NurseryCapacity = 8
			rt, roots := newTestRuntime(t, cfg, nodeClass, plainClass)

			buildList(t, rt, roots, 60)
			checkList(t, rt, roots.refs[0], 60)

			rt.FinishIncremental()
			rt.GC()
			checkList(t, rt, roots.refs[0], 60)
			if rt.LiveObjects() != 60 {
				t.Errorf("LiveObjects = %d, want 60", rt.LiveObjects())
			}
		})
	}
}

func TestZealAllocEveryAllocation(t *testing.T) {
	const k = 40
	collections := func(zeal string) uint64 {
		cfg := testConfig()
		cfg.Zeal = zeal
		rt, roots := newTestRuntime(t, cfg, nodeClass, plainClass)
		buildList(t, rt, roots, k/2)
		return rt.Stats().Collections()
	}

	zealous := collections("2,1")
	baseline := collections("0")
	if zealous < k {
		t.Errorf("zeal 2,1 ran %d collections for %d allocations", zealous, k)
	}
	if zealous <= baseline {
		t.Errorf("zeal collections %d not above baseline %d", zealous, baseline)
	}
}
