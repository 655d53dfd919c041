package dump

import (
	"encoding/binary"
	"fmt"
	"math"

	"leaker/internal/lasterror"
)

// Kind is the element type of a dump.
type Kind int

const (
	Uint8 Kind = iota
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

var kindNames = [...]string{
	Uint8:   "uint8_t",
	Uint16:  "uint16_t",
	Uint32:  "uint32_t",
	Uint64:  "uint64_t",
	Int8:    "int8_t",
	Int16:   "int16_t",
	Int32:   "int32_t",
	Int64:   "int64_t",
	Float32: "float",
	Float64: "double",
}

var aliases = map[string]Kind{
	"uint8_t": Uint8, "ubyte1": Uint8,
	"uint16_t": Uint16, "uint2": Uint16,
	"uint32_t": Uint32, "uint4": Uint32,
	"uint64_t": Uint64, "uint8": Uint64,
	"int8_t": Int8, "sbyte1": Int8,
	"int16_t": Int16, "sint2": Int16,
	"int32_t": Int32, "sint4": Int32,
	"int64_t": Int64, "sint8": Int64,
	"float": Float32, "binary32": Float32,
	"double": Float64, "binary64": Float64,
}

// ParseKind looks up a type name or alias. Note that "uint8" is the 8-byte
// alias, not the 1-byte one.
func ParseKind(name string) (Kind, error) {
	k, ok := aliases[name]
	if !ok {
		return 0, lasterror.Errorf("dump", 0, lasterror.InvalidArgument, "unknown type %q", name)
	}
	return k, nil
}

// Aliases returns every accepted type name for k.
func (k Kind) Aliases() []string {
	var names []string
	for name, kind := range aliases {
		if kind == k {
			names = append(names, name)
		}
	}
	return names
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Size is the element size in bytes.
func (k Kind) Size() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	}
	return 8
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool {
	return k >= Int8 && k <= Int64
}

// Float reports whether k is a floating-point kind.
func (k Kind) Float() bool {
	return k == Float32 || k == Float64
}

// width is the rendered width of one element.
func (k Kind) width() int {
	switch k {
	case Float32:
		return 20
	case Float64:
		return 29
	}
	return 2 * k.Size()
}

// Bits extracts the element at the start of raw as a zero-extended bit
// pattern in native byte order.
func (k Kind) Bits(raw []byte) uint64 {
	switch k.Size() {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(raw))
	case 4:
		return uint64(binary.NativeEndian.Uint32(raw))
	}
	return binary.NativeEndian.Uint64(raw)
}

// format renders one element. Integers print as fixed-width hex (signed
// values as their two's complement); floats print in scientific notation
// with one digit more than their decimal precision.
func (k Kind) format(raw []byte) string {
	bits := k.Bits(raw)
	switch k {
	case Float32:
		return fmt.Sprintf("%*.*e", k.width(), 7, math.Float32frombits(uint32(bits)))
	case Float64:
		return fmt.Sprintf("%*.*e", k.width(), 16, math.Float64frombits(bits))
	}
	return fmt.Sprintf("%0*x", k.width(), bits)
}

// Element is the set of Go types with a dump kind.
type Element interface {
	uint8 | uint16 | uint32 | uint64 |
		int8 | int16 | int32 | int64 |
		float32 | float64
}

// KindOf returns the kind of T.
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	}
	return Float64
}
