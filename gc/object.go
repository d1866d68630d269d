package gc

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
	"github.com/wippyai/gcroot/value"
)

// Object is a managed object. A *Object is a transient view: it is only
// meaningful while the Ref it was obtained from is rooted, and it must not be
// kept across a collection. Hold the Ref in a root instead.
type Object struct {
	rt        *Runtime
	class     *Class
	slots     []value.Value
	id        uint64
	ref       value.Ref
	marked    bool
	finalized bool
	dead      bool
}

// ID is the object's identity. It never changes, even when the object moves.
func (o *Object) ID() uint64 { return o.id }

// Ref is the object's current address.
func (o *Object) Ref() value.Ref { return o.ref }

// Class returns the object's class descriptor.
func (o *Object) Class() *Class { return o.class }

// Runtime returns the owning runtime.
func (o *Object) Runtime() *Runtime { return o.rt }

// Dead reports whether the collector has reclaimed the object.
func (o *Object) Dead() bool { return o.dead }

func (o *Object) checkSlot(i int) {
	if i < 0 || i >= len(o.slots) {
		o.rt.violation(errors.New(errors.PhaseCollect, errors.KindProtocolViolation).
			Label(o.class.Name).
			Detail("reserved slot %d out of range (class has %d)", i, len(o.slots)).
			Build())
	}
}

// ReservedSlot returns reserved slot i.
func (o *Object) ReservedSlot(i int) value.Value {
	o.checkSlot(i)
	return o.slots[i]
}

// Private returns the native pointer stored in reserved slot i, or nil.
func (o *Object) Private(i int) any {
	o.checkSlot(i)
	return o.slots[i].ToPrivate()
}

// SetReservedSlot stores v in slot i through the write barriers.
func (o *Object) SetReservedSlot(i int, v value.Value) {
	o.checkSlot(i)
	if o.dead {
		o.rt.violation(errors.Violation(errors.PhaseBarrier, "write to reclaimed object %d", o.id))
	}
	if o.rt.marking != nil {
		o.rt.preBarrierRef(o.slots[i].ToRef())
	}
	o.slots[i] = v
	if !o.ref.InNursery() && v.ToRef().InNursery() {
		o.rt.wholeCells[o] = struct{}{}
	}
}

// traceObject visits every edge of obj: reserved slots holding objects, then
// its class trace hook.
func traceObject(trc trace.Tracer, obj *Object) {
	trace.Values(trc, obj.slots, "reserved slot")
	if obj.class.Trace != nil {
		obj.class.Trace(trc, obj)
	}
}
