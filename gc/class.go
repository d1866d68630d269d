package gc

import (
	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
)

// MaxReservedSlots is the largest reserved-slot count a class may declare.
const MaxReservedSlots = 255

// FinalizeLocality selects where a class's finalize hook runs.
type FinalizeLocality uint8

const (
	// FinalizeForeground runs the hook synchronously during the sweep that
	// found the object unreachable.
	FinalizeForeground FinalizeLocality = iota
	// FinalizeBackground defers the hook to a background goroutine.
	FinalizeBackground
)

func (l FinalizeLocality) String() string {
	if l == FinalizeBackground {
		return "background"
	}
	return "foreground"
}

// TraceHook visits every managed reference reachable from an object's
// native data. It runs on every pass, including moving ones.
type TraceHook func(trc trace.Tracer, obj *Object)

// FinalizeHook releases native resources the object owns exclusively. It
// runs once, after no trace path reaches the object, and must not allocate.
type FinalizeHook func(fc *FinalizeContext, obj *Object)

// Class is the static descriptor of a managed object type.
//
// Declare classes as package-level values and register them with every
// runtime that allocates them:
//
//	var customClass = &gc.Class{
//	    Name:          "Custom",
//	    ReservedSlots: 2,
//	    Trace:         traceCustom,
//	    Finalize:      finalizeCustom,
//	}
type Class struct {
	Trace         TraceHook
	Finalize      FinalizeHook
	Name          string
	ReservedSlots int
	Locality      FinalizeLocality
}

func (c *Class) validate() error {
	if c == nil {
		return errors.InvalidInput(errors.PhaseClass, "nil class")
	}
	if c.Name == "" {
		return errors.InvalidInput(errors.PhaseClass, "class name is empty")
	}
	if c.ReservedSlots < 0 || c.ReservedSlots > MaxReservedSlots {
		return errors.New(errors.PhaseClass, errors.KindInvalidInput).
			Label(c.Name).
			Detail("reserved slot count %d outside [0, %d]", c.ReservedSlots, MaxReservedSlots).
			Build()
	}
	if c.Locality == FinalizeBackground && c.Finalize == nil {
		return errors.New(errors.PhaseClass, errors.KindInvalidInput).
			Label(c.Name).
			Detail("background finalize locality without a finalize hook").
			Build()
	}
	return nil
}

// classTable is the per-runtime dispatch table keyed by descriptor identity.
type classTable struct {
	byClass map[*Class]struct{}
	byName  map[string]*Class
}

func newClassTable() classTable {
	return classTable{
		byClass: make(map[*Class]struct{}),
		byName:  make(map[string]*Class),
	}
}

func (t *classTable) register(c *Class) error {
	if err := c.validate(); err != nil {
		return errors.Registration(errors.PhaseClass, "class", err)
	}
	if _, ok := t.byClass[c]; ok {
		return nil
	}
	if other, ok := t.byName[c.Name]; ok && other != c {
		return errors.Registration(errors.PhaseClass, c.Name,
			errors.InvalidInput(errors.PhaseClass, "a different class with this name is registered"))
	}
	t.byClass[c] = struct{}{}
	t.byName[c.Name] = c
	return nil
}

func (t *classTable) has(c *Class) bool {
	_, ok := t.byClass[c]
	return ok
}

// RegisterClass adds c to the runtime's class table. Registering the same
// descriptor twice is a no-op; a different descriptor with the same name is
// rejected.
func (rt *Runtime) RegisterClass(c *Class) error {
	return rt.classes.register(c)
}

// LookupClass finds a registered class by name.
func (rt *Runtime) LookupClass(name string) (*Class, bool) {
	c, ok := rt.classes.byName[name]
	return c, ok
}
