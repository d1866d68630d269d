package root

import (
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/trace"
)

// Node is a root registered in a RootList.
type Node interface {
	TraceRoot(trc trace.Tracer)
}

type entry struct {
	node Node
	seq  uint64
}

// RootList is a LIFO registry of stack roots. Every push returns a sequence
// number that the matching pop must present.
type RootList struct {
	entries []entry
	seq     uint64
}

// Push registers n on top of the list.
func (l *RootList) Push(n Node) uint64 {
	l.seq++
	l.entries = append(l.entries, entry{node: n, seq: l.seq})
	return l.seq
}

// Pop unregisters n, which must be the most recently pushed live root with
// sequence number seq.
func (l *RootList) Pop(n Node, seq uint64) {
	top := len(l.entries) - 1
	if top < 0 {
		violation(errors.Violation(errors.PhaseRoot, "release of root #%d from an empty root list", seq))
	}
	if e := l.entries[top]; e.node != n || e.seq != seq {
		violation(errors.New(errors.PhaseRoot, errors.KindProtocolViolation).
			Detail("out-of-order root release: releasing #%d but #%d is on top", seq, e.seq).
			Build())
	}
	l.entries[top] = entry{}
	l.entries = l.entries[:top]
}

// TraceAll traces every registered root from the top of the list down.
func (l *RootList) TraceAll(trc trace.Tracer) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		l.entries[i].node.TraceRoot(trc)
	}
}

// Len is the number of registered roots.
func (l *RootList) Len() int { return len(l.entries) }

// Empty reports whether no roots are registered.
func (l *RootList) Empty() bool { return len(l.entries) == 0 }

func violation(err *errors.Error) {
	Logger().Error("protocol violation", zap.Error(err))
	panic(err)
}
