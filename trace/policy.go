package trace

import (
	"reflect"
	"sync"

	"github.com/wippyai/gcroot/errors"
)

// Traceable is implemented by types that can trace their own edges.
type Traceable interface {
	Trace(trc Tracer)
}

// Sweeper is optionally implemented by Traceable types that can tell whether
// their referent has died. Weak wrappers are cleared when it returns true.
type Sweeper interface {
	NeedsSweep() bool
}

// Validator is optionally implemented by Traceable types that can check
// their own contents in debug assertions.
type Validator interface {
	IsValid() bool
}

// Policy is the out-of-line tracing behaviour for T.
type Policy[T any] interface {
	// Trace visits every edge reachable from *p.
	Trace(trc Tracer, p *T, name string)
	// NeedsSweep reports that the referent of *p is gone and the slot should
	// be cleared.
	NeedsSweep(p *T) bool
	// IsValid reports whether v is a legal value to store in a root.
	IsValid(v T) bool
}

var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type]any{}

	traceableType = reflect.TypeFor[Traceable]()
)

// Register installs p as the policy for T, replacing any previous one.
func Register[T any](p Policy[T]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reflect.TypeFor[T]()] = p
}

// Lookup returns the registered policy for T without falling back.
func Lookup[T any]() (Policy[T], bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return p.(Policy[T]), true
}

// PolicyFor resolves the policy for T: the registry first, then Traceable
// implemented by *T, then Traceable implemented by a pointer or interface T.
// Resolved policies are cached in the registry.
func PolicyFor[T any]() (Policy[T], error) {
	if p, ok := Lookup[T](); ok {
		return p, nil
	}

	t := reflect.TypeFor[T]()
	var p Policy[T]
	switch {
	case (t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface) && t.Implements(traceableType):
		p = nilablePolicy[T]{}
	case reflect.PointerTo(t).Implements(traceableType):
		p = addressablePolicy[T]{}
	default:
		return nil, errors.New(errors.PhaseTrace, errors.KindNotFound).
			GoType(t.String()).
			Detail("no trace policy: implement trace.Traceable or call trace.Register").
			Build()
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[t]; ok {
		return existing.(Policy[T]), nil
	}
	registry[t] = p
	return p, nil
}

// MustPolicyFor is PolicyFor that panics on failure.
func MustPolicyFor[T any]() Policy[T] {
	p, err := PolicyFor[T]()
	if err != nil {
		panic(err)
	}
	return p
}

// TypeName is the Go type name used in diagnostics.
func TypeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// addressablePolicy serves value types whose pointer is Traceable.
type addressablePolicy[T any] struct{}

func (addressablePolicy[T]) Trace(trc Tracer, p *T, _ string) {
	any(p).(Traceable).Trace(trc)
}

func (addressablePolicy[T]) NeedsSweep(p *T) bool {
	if s, ok := any(p).(Sweeper); ok {
		return s.NeedsSweep()
	}
	return false
}

func (addressablePolicy[T]) IsValid(v T) bool {
	if vv, ok := any(&v).(Validator); ok {
		return vv.IsValid()
	}
	return true
}

// nilablePolicy serves pointer and interface types that are Traceable.
// A nil value has no edges.
type nilablePolicy[T any] struct{}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	return rv.IsNil()
}

func (nilablePolicy[T]) Trace(trc Tracer, p *T, _ string) {
	if isNil(*p) {
		return
	}
	any(*p).(Traceable).Trace(trc)
}

func (nilablePolicy[T]) NeedsSweep(p *T) bool {
	if isNil(*p) {
		return false
	}
	if s, ok := any(*p).(Sweeper); ok {
		return s.NeedsSweep()
	}
	return false
}

func (nilablePolicy[T]) IsValid(v T) bool {
	if isNil(v) {
		return true
	}
	if vv, ok := any(v).(Validator); ok {
		return vv.IsValid()
	}
	return true
}

// Pointer returns the pass-through policy for *U, forwarding to inner.
// Without a current target it produces no edges, is never pending a sweep
// and is vacuously valid.
func Pointer[U any](inner Policy[U]) Policy[*U] {
	return pointerPolicy[U]{inner: inner}
}

// RegisterPointer registers the pass-through policy for *U built on the
// resolved policy of U.
func RegisterPointer[U any]() error {
	inner, err := PolicyFor[U]()
	if err != nil {
		return err
	}
	Register[*U](Pointer(inner))
	return nil
}

type pointerPolicy[U any] struct {
	inner Policy[U]
}

func (pp pointerPolicy[U]) Trace(trc Tracer, p **U, name string) {
	if target := *p; target != nil {
		pp.inner.Trace(trc, target, name)
	}
}

func (pp pointerPolicy[U]) NeedsSweep(p **U) bool {
	if target := *p; target != nil {
		return pp.inner.NeedsSweep(target)
	}
	return false
}

func (pp pointerPolicy[U]) IsValid(v *U) bool {
	if v != nil {
		return pp.inner.IsValid(*v)
	}
	return true
}

// Slice returns a policy tracing every element of a []U with inner.
// A slice needs a sweep only when every element does.
func Slice[U any](inner Policy[U]) Policy[[]U] {
	return slicePolicy[U]{inner: inner}
}

type slicePolicy[U any] struct {
	inner Policy[U]
}

func (sp slicePolicy[U]) Trace(trc Tracer, p *[]U, name string) {
	s := *p
	for i := range s {
		sp.inner.Trace(trc, &s[i], name)
	}
}

func (sp slicePolicy[U]) NeedsSweep(p *[]U) bool {
	s := *p
	if len(s) == 0 {
		return false
	}
	for i := range s {
		if !sp.inner.NeedsSweep(&s[i]) {
			return false
		}
	}
	return true
}

func (sp slicePolicy[U]) IsValid(v []U) bool {
	for _, e := range v {
		if !sp.inner.IsValid(e) {
			return false
		}
	}
	return true
}
