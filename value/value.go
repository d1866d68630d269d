package value

import (
	"fmt"
	"math"
)

// Tag identifies the kind of data a Value holds.
type Tag uint8

const (
	TagUndefined Tag = iota
	TagNull
	TagBool
	TagInt32
	TagDouble
	TagObject
	TagPrivate
)

var tagNames = [...]string{
	TagUndefined: "undefined",
	TagNull:      "null",
	TagBool:      "bool",
	TagInt32:     "int32",
	TagDouble:    "double",
	TagObject:    "object",
	TagPrivate:   "private",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Value is a tagged managed value. The zero Value is undefined.
// Only TagObject values are edges the collector follows; private values are
// opaque to it. An object value whose edge a tracer nulled reads as null.
type Value struct {
	priv any
	bits uint64
	ref  Ref
	tag  Tag
}

func Undefined() Value { return Value{} }
func NullValue() Value { return Value{tag: TagNull} }

func Bool(b bool) Value {
	v := Value{tag: TagBool}
	if b {
		v.bits = 1
	}
	return v
}

func Int32(i int32) Value { return Value{tag: TagInt32, bits: uint64(uint32(i))} }

func Double(f float64) Value { return Value{tag: TagDouble, bits: math.Float64bits(f)} }

// Object wraps a reference. A null reference yields the null value.
func Object(r Ref) Value {
	if r.IsNull() {
		return NullValue()
	}
	return Value{tag: TagObject, ref: r}
}

// Private wraps an opaque native pointer. The collector never looks inside.
func Private(p any) Value { return Value{tag: TagPrivate, priv: p} }

func (v Value) kind() Tag {
	if v.tag == TagObject && v.ref.IsNull() {
		return TagNull
	}
	return v.tag
}

func (v Value) Tag() Tag          { return v.kind() }
func (v Value) IsUndefined() bool { return v.tag == TagUndefined }
func (v Value) IsNull() bool      { return v.kind() == TagNull }
func (v Value) IsObject() bool    { return v.kind() == TagObject }
func (v Value) IsPrivate() bool   { return v.tag == TagPrivate }

// ToRef returns the object reference, or Null for non-object values.
func (v Value) ToRef() Ref {
	if v.tag != TagObject {
		return Null
	}
	return v.ref
}

// RefPtr returns the address of the reference inside v, or nil if v is not an
// object. Tracers rewrite through this pointer when the referent moves.
func (v *Value) RefPtr() *Ref {
	if v.tag != TagObject {
		return nil
	}
	return &v.ref
}

func (v Value) ToBool() bool { return v.tag == TagBool && v.bits != 0 }

func (v Value) ToInt32() int32 {
	if v.tag != TagInt32 {
		return 0
	}
	return int32(uint32(v.bits))
}

func (v Value) ToDouble() float64 {
	switch v.tag {
	case TagDouble:
		return math.Float64frombits(v.bits)
	case TagInt32:
		return float64(v.ToInt32())
	}
	return math.NaN()
}

// ToPrivate returns the native pointer of a private value, or nil.
func (v Value) ToPrivate() any {
	if v.tag != TagPrivate {
		return nil
	}
	return v.priv
}

// Same reports whether a and b hold the same payload. Private values compare
// by interface equality and must hold comparable types.
func Same(a, b Value) bool {
	if a.kind() != b.kind() {
		return false
	}
	switch a.kind() {
	case TagObject:
		return a.ref == b.ref
	case TagPrivate:
		return a.priv == b.priv
	}
	return a.bits == b.bits
}

func (v Value) String() string {
	switch v.kind() {
	case TagBool:
		return fmt.Sprintf("%t", v.ToBool())
	case TagInt32:
		return fmt.Sprintf("%d", v.ToInt32())
	case TagDouble:
		return fmt.Sprintf("%g", v.ToDouble())
	case TagObject:
		return v.ref.String()
	case TagPrivate:
		return fmt.Sprintf("private(%T)", v.priv)
	}
	return v.kind().String()
}
