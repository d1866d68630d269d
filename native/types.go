package native

// Handle is an opaque reference to a companion in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Ownership says how a reserved slot refers to its companion.
type Ownership uint8

const (
	Owned Ownership = iota
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

// Event types for companion lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventBorrowed
	EventBorrowReturned
)

// Event represents a companion lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about companion lifecycle events.
type Observer interface {
	OnCompanionEvent(Event)
}

// Dropper is optionally implemented by companions that need cleanup when
// released.
type Dropper interface {
	Drop()
}
