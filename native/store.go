package native

import (
	"sync"

	"github.com/wippyai/gcroot/errors"
)

var (
	ErrClosed            = errors.New(errors.PhaseNative, errors.KindClosed).Detail("companion table closed").Build()
	ErrOutstandingBorrow = errors.New(errors.PhaseNative, errors.KindBorrowed).Detail("cannot release companion with outstanding borrows").Build()
	ErrInvalidHandle     = errors.New(errors.PhaseNative, errors.KindNotFound).Detail("invalid companion handle").Build()
)

// store is the in-memory slot array behind a Table, with a free list and
// borrow counts.
type store struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	borrowCount uint32
	valid       bool
}

func newStore() *store {
	return &store{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (s *store) create(value any) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e := entry{value: value, valid: true}

	if len(s.freeList) > 0 {
		handle := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		s.entries[handle-1] = e
		return handle, nil
	}

	s.entries = append(s.entries, e)
	return Handle(len(s.entries)), nil
}

// lookup returns the live entry for handle. Caller holds mu.
func (s *store) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	idx := int(handle - 1)
	if idx >= len(s.entries) {
		return nil
	}
	e := &s.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

func (s *store) get(handle Handle) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

func (s *store) release(handle Handle) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(handle)
	if e == nil {
		return nil, ErrInvalidHandle
	}
	if e.borrowCount > 0 {
		return nil, ErrOutstandingBorrow
	}

	value := e.value
	*e = entry{}
	s.freeList = append(s.freeList, handle)
	return value, nil
}

func (s *store) borrow(handle Handle) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(handle)
	if e == nil {
		return nil, false
	}
	e.borrowCount++
	return e.value, true
}

func (s *store) returnBorrow(handle Handle) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return nil, false
	}
	e.borrowCount--
	return e.value, true
}

func (s *store) borrows(handle Handle) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.lookup(handle)
	if e == nil {
		return 0
	}
	return e.borrowCount
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.valid {
			count++
		}
	}
	return count
}

func (s *store) each(fn func(Handle, any) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, e := range s.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}

func (s *store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for i := range s.entries {
		if s.entries[i].valid {
			if d, ok := s.entries[i].value.(Dropper); ok {
				d.Drop()
			}
		}
	}
	s.entries = nil
	s.freeList = nil
}
