package value

import (
	"math"
	"testing"
)

func TestMakeRef_RoundTripFields(t *testing.T) {
	tests := []struct {
		name  string
		zone  uint8
		space Space
		epoch uint8
		gen   uint16
		index uint32
	}{
		{"tenured", 1, SpaceTenured, 0, 0, 0},
		{"nursery", 3, SpaceNursery, 5, 9, 1234},
		{"max fields", 255, SpaceNursery, 127, math.MaxUint16, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MakeRef(tt.zone, tt.space, tt.epoch, tt.gen, tt.index)
			if r.Zone() != tt.zone || r.Space() != tt.space || r.Epoch() != tt.epoch ||
				r.Gen() != tt.gen || r.Index() != tt.index {
				t.Fatalf("fields mismatch for %v", r)
			}
			if r.IsNull() {
				t.Fatal("non-zero zone must not be null")
			}
		})
	}
}

func TestMakeRef_EpochWraps(t *testing.T) {
	if NextEpoch(127) != 0 {
		t.Fatalf("expected epoch wrap to 0, got %d", NextEpoch(127))
	}
	r := MakeRef(1, SpaceTenured, 130, 0, 0)
	if r.Epoch() != 2 {
		t.Fatalf("expected truncated epoch 2, got %d", r.Epoch())
	}
}

func TestRef_InNursery(t *testing.T) {
	if Null.InNursery() {
		t.Fatal("null ref is not in the nursery")
	}
	if !MakeRef(1, SpaceNursery, 0, 0, 0).InNursery() {
		t.Fatal("expected nursery ref")
	}
}

func TestValue_Accessors(t *testing.T) {
	r := MakeRef(1, SpaceTenured, 0, 0, 7)

	if !Undefined().IsUndefined() {
		t.Error("zero value should be undefined")
	}
	if Object(Null).Tag() != TagNull {
		t.Error("object of null ref should be null")
	}
	if got := Object(r).ToRef(); got != r {
		t.Errorf("ToRef = %v, want %v", got, r)
	}
	if Int32(5).ToRef() != Null {
		t.Error("non-object ToRef should be Null")
	}
	if Int32(-3).ToInt32() != -3 {
		t.Error("int32 round trip")
	}
	if Double(1.5).ToDouble() != 1.5 {
		t.Error("double round trip")
	}
	if !Bool(true).ToBool() || Bool(false).ToBool() {
		t.Error("bool round trip")
	}
	box := &struct{ n int }{}
	if Private(box).ToPrivate() != box {
		t.Error("private round trip")
	}
}

func TestValue_RefPtrRewritesInPlace(t *testing.T) {
	v := Object(MakeRef(1, SpaceNursery, 0, 0, 1))
	p := v.RefPtr()
	if p == nil {
		t.Fatal("expected ref pointer for object value")
	}
	moved := MakeRef(1, SpaceTenured, 0, 0, 9)
	*p = moved
	if v.ToRef() != moved {
		t.Fatalf("rewrite through RefPtr not visible: %v", v)
	}

	n := Int32(1)
	if n.RefPtr() != nil {
		t.Fatal("non-object value has no ref pointer")
	}
}

func TestSame(t *testing.T) {
	r := MakeRef(1, SpaceTenured, 0, 0, 1)
	if !Same(Object(r), Object(r)) {
		t.Error("same ref should be Same")
	}
	if Same(Object(r), Int32(1)) {
		t.Error("different tags are not Same")
	}
	if !Same(Undefined(), Undefined()) {
		t.Error("undefined is Same as undefined")
	}
}

func TestClearedObjectReadsNull(t *testing.T) {
	v := Object(MakeRef(1, SpaceTenured, 0, 0, 1))
	*v.RefPtr() = Null

	if v.IsObject() || !v.IsNull() || v.Tag() != TagNull {
		t.Errorf("cleared object value has tag %v", v.Tag())
	}
	if !Same(v, NullValue()) {
		t.Error("cleared object should be Same as null")
	}
	if v.String() != "null" {
		t.Errorf("String() = %q, want null", v.String())
	}
}
