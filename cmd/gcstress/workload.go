package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/gcroot/gc"
	"github.com/wippyai/gcroot/native"
	"github.com/wippyai/gcroot/root"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

const (
	slotNext = iota
	slotPayload
)

const (
	slotOwned = iota
	slotBorrowed
)

var nodeClass = &gc.Class{Name: "Node", ReservedSlots: 2}

// box is a native aggregate holding managed values in heap slots.
type box struct {
	v     gc.Heap[value.Value]
	items []gc.Heap[value.Value]
}

func (b *box) Trace(trc trace.Tracer) {
	b.v.Trace(trc, "box.v")
	for i := range b.items {
		b.items[i].Trace(trc, "box.items")
	}
}

// companion is native data attached to a Custom object through the table.
type companion struct {
	val     gc.Heap[value.Value]
	dropped atomic.Bool
}

func (c *companion) Trace(trc trace.Tracer) { c.val.Trace(trc, "companion.val") }
func (c *companion) Drop()                  { c.dropped.Store(true) }

// report summarizes a workload run.
type report struct {
	Rounds    int
	Objects   int
	Finalized int64
	Blobs     int64
	Stats     gc.Stats
}

// workload drives every rooting primitive against one runtime: stack roots
// of values, traceable structs and owning pointers, persistent globals, weak
// slots, and a Custom class whose companions live in a native table.
type workload struct {
	rt  *gc.Runtime
	tbl *native.Table
	log *zap.Logger

	customClass *gc.Class
	blobClass   *gc.Class

	head   root.Persistent[value.Value]
	shared root.Persistent[*companion]
	cache  root.Persistent[*box]

	sharedH   native.Handle
	objects   int
	rounds    int
	finalized atomic.Int64
	blobs     atomic.Int64
}

func newWorkload(cfg gc.Config, objects int) (*workload, error) {
	if objects <= 0 {
		return nil, fmt.Errorf("objects must be positive, got %d", objects)
	}
	rt, err := gc.New(cfg)
	if err != nil {
		return nil, err
	}

	w := &workload{
		rt:      rt,
		tbl:     native.NewTable(),
		log:     rt.Log().Named("gcstress"),
		objects: objects,
	}
	w.customClass = &gc.Class{
		Name:          "Custom",
		ReservedSlots: 2,
		Trace:         w.traceCustom,
		Finalize:      w.finalizeCustom,
	}
	w.blobClass = &gc.Class{
		Name:     "Blob",
		Locality: gc.FinalizeBackground,
		Finalize: func(*gc.FinalizeContext, *gc.Object) { w.blobs.Add(1) },
	}

	if err := w.setup(); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

func (w *workload) setup() error {
	for _, c := range []*gc.Class{nodeClass, w.customClass, w.blobClass} {
		if err := w.rt.RegisterClass(c); err != nil {
			return err
		}
	}

	w.head.Label = "list head"
	if err := w.head.Init(w.rt, value.NullValue()); err != nil {
		return err
	}

	shared := &companion{}
	w.sharedH = w.tbl.Insert(shared)
	if err := w.shared.Init(w.rt, shared); err != nil {
		return err
	}
	ref, err := w.rt.NewObject(nodeClass)
	if err != nil {
		return err
	}
	shared.val.Set(value.Object(ref))

	w.cache.Label = "cache"
	return w.cache.Init(w.rt, &box{})
}

func (w *workload) traceCustom(trc trace.Tracer, obj *gc.Object) {
	for _, slot := range []int{slotOwned, slotBorrowed} {
		if c, ok := native.Lookup[*companion](w.tbl, obj.ReservedSlot(slot)); ok {
			c.Trace(trc)
		}
	}
}

func (w *workload) finalizeCustom(_ *gc.FinalizeContext, obj *gc.Object) {
	w.finalized.Add(1)
	if err := w.tbl.Drop(obj.ReservedSlot(slotOwned)); err != nil {
		w.log.Warn("drop owned companion", zap.Error(err))
	}
	if err := w.tbl.Drop(obj.ReservedSlot(slotBorrowed)); err != nil {
		w.log.Warn("return borrowed companion", zap.Error(err))
	}
}

func (w *workload) alloc(c *gc.Class) (value.Value, error) {
	ref, err := w.rt.NewObject(c)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Object(ref), nil
}

// round builds a fresh graph, publishes it, collects with compaction and
// checks that everything rooted survived with its identity.
func (w *workload) round() error {
	cx, err := root.NewContext(w.rt)
	if err != nil {
		return err
	}
	defer cx.Close()

	list := root.NewNamed(cx, "list", value.NullValue())
	defer list.Release()
	for i := 0; i < w.objects; i++ {
		v, err := w.alloc(nodeClass)
		if err != nil {
			return err
		}
		node := w.rt.MustDeref(v.ToRef())
		node.SetReservedSlot(slotNext, list.Get())
		node.SetReservedSlot(slotPayload, value.Int32(int32(i)))
		list.Set(v)
	}

	b := root.NewZero[box](cx)
	defer b.Release()
	b.Ptr().items = make([]gc.Heap[value.Value], 4)
	for i := range b.Ptr().items {
		v, err := w.alloc(nodeClass)
		if err != nil {
			return err
		}
		b.Ptr().items[i].Set(v)
	}

	owner := root.New(cx, &box{})
	defer owner.Release()
	v, err := w.alloc(nodeClass)
	if err != nil {
		return err
	}
	owner.Get().v.Set(v)

	if err := w.custom(cx); err != nil {
		return err
	}

	blob, err := w.alloc(w.blobClass)
	if err != nil {
		return err
	}
	weak, err := gc.NewWeak(w.rt, blob)
	if err != nil {
		return err
	}
	defer weak.Release()

	w.head.Set(list.Get())
	w.cache.Get().v.Set(b.Ptr().items[0].Get())

	headID := w.rt.MustDeref(list.Get().ToRef()).ID()
	ownedID := w.rt.MustDeref(owner.Get().v.Get().ToRef()).ID()

	w.rt.Collect(gc.CollectShrinking, "gcstress")

	if err := w.checkList(list.Handle(), headID); err != nil {
		return err
	}
	if got := w.rt.MustDeref(owner.Get().v.Get().ToRef()).ID(); got != ownedID {
		return fmt.Errorf("owning pointer lost its referent: id %d, want %d", got, ownedID)
	}
	if !value.Same(w.cache.Get().v.Get(), b.Ptr().items[0].Get()) {
		return fmt.Errorf("persistent cache and stack box disagree after relocation")
	}
	if !value.Same(w.head.Get(), list.Get()) {
		return fmt.Errorf("persistent head and stack root disagree after relocation")
	}

	w.rounds++
	w.log.Debug("round complete",
		zap.Int("round", w.rounds),
		zap.Int("live", w.rt.LiveObjects()),
		zap.Bool("weak_cleared", weak.Get().IsUndefined()))
	return nil
}

// custom allocates a Custom object with an owned companion and a borrow of
// the shared one, then drops its root so a later sweep finalizes it.
func (w *workload) custom(cx *root.Context) error {
	owned := &companion{}
	h := w.tbl.Insert(owned)

	v, err := w.alloc(w.customClass)
	if err != nil {
		_, _ = w.tbl.Release(h)
		return err
	}
	obj := root.New(cx, v)
	defer obj.Release()

	o := w.rt.MustDeref(v.ToRef())
	o.SetReservedSlot(slotOwned, native.SlotValue(h, native.Owned))
	if _, ok := w.tbl.Borrow(w.sharedH); ok {
		o.SetReservedSlot(slotBorrowed, native.SlotValue(w.sharedH, native.Borrowed))
	}

	payload, err := w.alloc(nodeClass)
	if err != nil {
		return err
	}
	owned.val.Set(payload)
	return nil
}

func (w *workload) checkList(h root.Handle[value.Value], headID uint64) error {
	v := h.Get()
	if got := w.rt.MustDeref(v.ToRef()).ID(); got != headID {
		return fmt.Errorf("list head id %d, want %d", got, headID)
	}
	n := 0
	for v.IsObject() {
		obj, ok := w.rt.Deref(v.ToRef())
		if !ok {
			return fmt.Errorf("list node %d does not resolve", n)
		}
		want := int32(w.objects - 1 - n)
		if got := obj.ReservedSlot(slotPayload).ToInt32(); got != want {
			return fmt.Errorf("list node %d payload %d, want %d", n, got, want)
		}
		v = obj.ReservedSlot(slotNext)
		n++
	}
	if n != w.objects {
		return fmt.Errorf("list has %d nodes, want %d", n, w.objects)
	}
	return nil
}

// run executes rounds until ctx is done. progress, if set, is called after
// every round.
func (w *workload) run(ctx context.Context, rounds int, progress func(done int, st gc.Stats)) error {
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.round(); err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
		if progress != nil {
			progress(i+1, w.rt.Stats())
		}
	}
	return nil
}

func (w *workload) report() report {
	return report{
		Rounds:    w.rounds,
		Objects:   w.objects,
		Finalized: w.finalized.Load(),
		Blobs:     w.blobs.Load(),
		Stats:     w.rt.Stats(),
	}
}

// close drops the globals and shuts the runtime down, finalizing whatever
// is left. The returned report includes the shutdown finalizers.
func (w *workload) close() report {
	w.head.Reset()
	w.cache.Reset()
	w.shared.Reset()
	w.rt.Shutdown()
	rep := w.report()
	if err := w.tbl.Close(); err != nil {
		w.log.Warn("close companion table", zap.Error(err))
	}
	return rep
}
