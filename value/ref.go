package value

import "fmt"

// Ref is a relocatable reference to a managed object. The zero Ref is null.
type Ref uint64

// Space selects the region an object currently lives in.
type Space uint8

const (
	SpaceTenured Space = iota
	SpaceNursery
)

const (
	indexBits = 32
	genBits   = 16
	epochBits = 7
	spaceBits = 1
	zoneBits  = 8

	genShift   = indexBits
	epochShift = genShift + genBits
	spaceShift = epochShift + epochBits
	zoneShift  = spaceShift + spaceBits

	indexMask = 1<<indexBits - 1
	genMask   = 1<<genBits - 1
	epochMask = 1<<epochBits - 1
	spaceMask = 1<<spaceBits - 1
	zoneMask  = 1<<zoneBits - 1
)

// MaxZones is the number of distinct runtimes that may exist at once.
const MaxZones = zoneMask

// Null is the null reference.
const Null Ref = 0

// MakeRef packs a reference. Components are truncated to their field width.
func MakeRef(zone uint8, space Space, epoch uint8, gen uint16, index uint32) Ref {
	return Ref(uint64(zone&zoneMask)<<zoneShift |
		uint64(space&spaceMask)<<spaceShift |
		uint64(epoch&epochMask)<<epochShift |
		uint64(gen&genMask)<<genShift |
		uint64(index))
}

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == Null }

func (r Ref) Zone() uint8   { return uint8(uint64(r) >> zoneShift & zoneMask) }
func (r Ref) Space() Space  { return Space(uint64(r) >> spaceShift & spaceMask) }
func (r Ref) Epoch() uint8  { return uint8(uint64(r) >> epochShift & epochMask) }
func (r Ref) Gen() uint16   { return uint16(uint64(r) >> genShift & genMask) }
func (r Ref) Index() uint32 { return uint32(uint64(r) & indexMask) }

// InNursery reports whether r names a nursery object.
func (r Ref) InNursery() bool { return !r.IsNull() && r.Space() == SpaceNursery }

// NextEpoch returns the epoch that follows e, wrapping within the field width.
func NextEpoch(e uint8) uint8 { return (e + 1) & epochMask }

func (r Ref) String() string {
	if r.IsNull() {
		return "ref(null)"
	}
	sp := "T"
	if r.Space() == SpaceNursery {
		sp = "N"
	}
	return fmt.Sprintf("ref(z%d/%s e%d g%d #%d)", r.Zone(), sp, r.Epoch(), r.Gen(), r.Index())
}
