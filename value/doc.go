// Package value defines the collector-managed value model.
//
// A Ref is the address of a managed object. Unlike a Go pointer it is not
// stable: the collector rewrites every Ref it can discover when it moves the
// object it names. A Ref that the collector cannot discover is not updated
// and, after the next moving pass, no longer resolves.
//
//	┌──────┬───────┬───────┬──────────┬──────────────┐
//	│ zone │ space │ epoch │   gen    │    index     │
//	│  8   │   1   │   7   │    16    │      32      │
//	└──────┴───────┴───────┴──────────┴──────────────┘
//
// Zone identifies the owning runtime (zone 0 is never assigned, so the zero
// Ref is null). Space selects the nursery or the tenured heap. Epoch advances
// with every compacting pass and gen with every reuse of an index, so a stale
// Ref fails to resolve instead of aliasing a different object.
//
// A Value is a tagged union of the things a reserved slot or a rooted slot
// may hold: undefined, null, booleans, numbers, object references and
// private (opaque native) pointers. Only object values are edges.
package value
