package gc

import (
	"go.uber.org/zap"
)

// FinalizeContext is passed to finalize hooks.
type FinalizeContext struct {
	rt         *Runtime
	background bool
}

// Runtime returns the runtime that reclaimed the object. Background hooks
// must not use it to touch the heap.
func (fc *FinalizeContext) Runtime() *Runtime { return fc.rt }

// OnBackgroundThread reports whether the hook runs off the mutator.
func (fc *FinalizeContext) OnBackgroundThread() bool { return fc.background }

func (rt *Runtime) finalize(obj *Object) {
	rt.inFinalize = true
	defer func() { rt.inFinalize = false }()
	obj.class.Finalize(&FinalizeContext{rt: rt}, obj)
	rt.stats.Finalized++
}

func (rt *Runtime) finalizeInBackground(objs []*Object) {
	rt.bg.Add(1)
	go func() {
		defer rt.bg.Done()
		fc := &FinalizeContext{rt: rt, background: true}
		for _, obj := range objs {
			obj.class.Finalize(fc, obj)
			rt.bgFinalized.Add(1)
		}
		rt.log.Debug("background finalization done", zap.Int("objects", len(objs)))
	}()
}

// WaitBackgroundFinalize blocks until every queued background finalizer has
// run.
func (rt *Runtime) WaitBackgroundFinalize() { rt.bg.Wait() }
