package memory

import (
	"encoding/binary"
	"unicode/utf16"
)

// A string descriptor is the native counted-string header:
//
//	struct { uint16 Length; uint16 MaximumLength; <pad>; T *Buffer }
//
// with Buffer aligned to the pointer size.
const descriptorBufferOffset = uint64(PointerSize)

func descriptor(addr uint64) (length uint16, buffer uint64, err error) {
	length, err = Read[uint16](addr)
	if err != nil {
		return 0, 0, err
	}
	p, err := Read[uintptr](addr + descriptorBufferOffset)
	if err != nil {
		return 0, 0, err
	}
	return length, uint64(p), nil
}

// UnicodeString copies Length UTF-16 units out of the wide-character
// descriptor at addr.
func UnicodeString(addr uint64) (string, error) {
	length, buffer, err := descriptor(addr)
	if err != nil {
		return "", err
	}
	raw, err := Load(buffer, int(length)*2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.NativeEndian.Uint16(raw[2*i:])
	}
	return string(utf16.Decode(units)), nil
}

// AnsiString copies Length bytes out of the byte-string descriptor at addr.
func AnsiString(addr uint64) (string, error) {
	length, buffer, err := descriptor(addr)
	if err != nil {
		return "", err
	}
	raw, err := Load(buffer, int(length))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
