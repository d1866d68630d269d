package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in the protocol the error occurred
type Phase string

const (
	PhaseRoot     Phase = "root"     // stack and persistent root registration
	PhaseHandle   Phase = "handle"   // handle access
	PhaseTrace    Phase = "trace"    // trace policy resolution
	PhaseCollect  Phase = "collect"  // marking, sweeping, compaction
	PhaseBarrier  Phase = "barrier"  // write barrier bookkeeping
	PhaseFinalize Phase = "finalize" // finalize hook dispatch
	PhaseAlloc    Phase = "alloc"    // object allocation
	PhaseClass    Phase = "class"    // class descriptor registration
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseZeal     Phase = "zeal"     // debug stress-test configuration
	PhaseShutdown Phase = "shutdown" // runtime teardown
	PhaseNative   Phase = "native"   // native companion table
)

// Kind categorizes the error
type Kind string

const (
	KindProtocolViolation Kind = "protocol_violation"
	KindAllocation        Kind = "allocation"
	KindNotInitialized    Kind = "not_initialized"
	KindInvalidInput      Kind = "invalid_input"
	KindRegistration      Kind = "registration"
	KindNotFound          Kind = "not_found"
	KindDangling          Kind = "dangling"
	KindLeakedRoot        Kind = "leaked_root"
	KindUnsupported       Kind = "unsupported"
	KindClosed            Kind = "closed"
	KindBorrowed          Kind = "borrowed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Label  string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Label != "" {
		b.WriteString(" at ")
		b.WriteString(e.Label)
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsViolation reports whether err, or any error it wraps, is a protocol
// violation.
func IsViolation(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e != nil && e.Kind == KindProtocolViolation
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Label sets the debug label of the root or edge involved
func (b *Builder) Label(l string) *Builder {
	b.err.Label = l
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Violation creates a protocol violation error
func Violation(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindProtocolViolation).Detail(detail, args...).Build()
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("heap limit of %d objects reached", limit),
		Value:  limit,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Dangling creates an error for a reference that no longer resolves
func Dangling(phase Phase, ref any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDangling,
		Detail: fmt.Sprintf("%v does not resolve to a live object", ref),
		Value:  ref,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// LeakedRoot describes a persistent root that was still registered when the
// runtime shut down.
type LeakedRoot struct {
	GoType string // e.g., "*main.SafeBox"
	Label  string // e.g., "globalPtrSafe"
}

// LeakedRootsError is the fatal shutdown error raised when persistent roots
// outlive the collector.
type LeakedRootsError struct {
	Roots []LeakedRoot
}

func (e *LeakedRootsError) Error() string {
	if len(e.Roots) == 0 {
		return "[shutdown] leaked_root: no roots specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d persistent root(s) not reset before shutdown:\n", len(e.Roots))

	byType := make(map[string][]string)
	var types []string
	for _, r := range e.Roots {
		if _, exists := byType[r.GoType]; !exists {
			types = append(types, r.GoType)
		}
		label := r.Label
		if label == "" {
			label = "(unlabelled)"
		}
		byType[r.GoType] = append(byType[r.GoType], label)
	}
	sort.Strings(types)

	for _, t := range types {
		b.WriteString("\n  ")
		b.WriteString(t)
		b.WriteString(":\n")
		for _, l := range byType[t] {
			b.WriteString("    - ")
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *LeakedRootsError) Is(target error) bool {
	switch t := target.(type) {
	case *LeakedRootsError:
		return true
	case *Error:
		return t.Phase == PhaseShutdown && t.Kind == KindLeakedRoot
	}
	return false
}
