package native

import (
	"sync"

	"github.com/wippyai/gcroot/value"
)

// Table maps handles to companion values with observer support.
type Table struct {
	store     *store
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty companion table.
func NewTable() *Table {
	return &Table{store: newStore()}
}

// Insert adds a companion and returns its handle. Returns 0 after Close.
func (t *Table) Insert(v any) Handle {
	handle, err := t.store.create(v)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: handle, Value: v})
	return handle
}

// Get retrieves a companion by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.store.get(handle)
}

// Release removes an owned companion and calls Drop on it if implemented.
func (t *Table) Release(handle Handle) (any, error) {
	v, err := t.store.release(handle)
	if err != nil {
		return nil, err
	}
	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventReleased, Handle: handle, Value: v})
	return v, nil
}

// Borrow records a borrowed reference and returns the companion.
func (t *Table) Borrow(handle Handle) (any, bool) {
	v, ok := t.store.borrow(handle)
	if ok {
		t.notify(Event{Type: EventBorrowed, Handle: handle, Value: v})
	}
	return v, ok
}

// ReturnBorrow ends a borrowed reference.
func (t *Table) ReturnBorrow(handle Handle) bool {
	v, ok := t.store.returnBorrow(handle)
	if ok {
		t.notify(Event{Type: EventBorrowReturned, Handle: handle, Value: v})
	}
	return ok
}

// Borrows returns the number of outstanding borrows of handle.
func (t *Table) Borrows(handle Handle) uint32 {
	return t.store.borrows(handle)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live companions.
func (t *Table) Len() int {
	return t.store.len()
}

// Each iterates over all live companions.
func (t *Table) Each(fn func(Handle, any) bool) {
	t.store.each(fn)
}

// Close drops every companion and stops accepting inserts.
func (t *Table) Close() error {
	t.store.close()
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnCompanionEvent(e)
	}
}

// Slot is the reserved-slot encoding of a companion reference.
type Slot struct {
	Handle    Handle
	Ownership Ownership
}

// SlotValue encodes a companion reference as a private value.
func SlotValue(h Handle, o Ownership) value.Value {
	return value.Private(Slot{Handle: h, Ownership: o})
}

// SlotFrom decodes a reserved-slot value written by SlotValue.
func SlotFrom(v value.Value) (Slot, bool) {
	s, ok := v.ToPrivate().(Slot)
	return s, ok && s.Handle != 0
}

// Lookup resolves a reserved-slot value to a companion of type T.
func Lookup[T any](t *Table, v value.Value) (T, bool) {
	var zero T
	s, ok := SlotFrom(v)
	if !ok {
		return zero, false
	}
	raw, ok := t.Get(s.Handle)
	if !ok {
		return zero, false
	}
	c, ok := raw.(T)
	return c, ok
}

// Drop ends the reference held by a reserved-slot value: owned companions
// are released, borrowed ones returned.
func (t *Table) Drop(v value.Value) error {
	s, ok := SlotFrom(v)
	if !ok {
		return nil
	}
	if s.Ownership == Borrowed {
		if !t.ReturnBorrow(s.Handle) {
			return ErrInvalidHandle
		}
		return nil
	}
	_, err := t.Release(s.Handle)
	return err
}
