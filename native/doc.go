// Package native manages native companion values referenced from the
// reserved slots of managed objects.
//
// A managed object cannot hold a Go pointer the collector knows about, so it
// stores a Handle in a private reserved slot instead. The Table maps handles
// to companion values and tracks whether each reference is owned or
// borrowed:
//
//	owned    - the object releases the companion when it is finalized
//	borrowed - the object only uses it; the owner outlives the object
//
// # Handle Table
//
//	table := native.NewTable()
//
//	// Insert a companion, get a handle
//	h := table.Insert(box)
//
//	// Borrow from another owner
//	table.Borrow(eternal)
//	...
//	table.ReturnBorrow(eternal)
//
//	// Release an owned companion (calls Drop if implemented)
//	table.Release(h)
//
// A companion with outstanding borrows cannot be released; Release reports
// ErrOutstandingBorrow and leaves it in place.
//
// # Observers
//
// Register observers to track companion lifecycle events:
//
//	table.Subscribe(observer)
//
// # Tracing
//
// Companions that hold managed references (gc.Heap fields) are not traced by
// this table. The class trace hook of every object that refers to a
// companion, owned or borrowed, must trace it.
package native
