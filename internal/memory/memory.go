// Package memory reads and writes typed values at raw addresses inside the
// running process.
//
// Nothing is checked up front: every access is simply attempted. A hardware
// fault (unmapped page, missing permission) is caught by guard, the single
// place where faults are allowed to happen, and reported as
// lasterror.ErrAccessViolation instead of crashing the process.
package memory

import (
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"unsafe"

	"leaker/internal/lasterror"
)

// Scalar is the set of element types that can be read, written and dumped.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64 | ~uintptr
}

// PointerSize is the native pointer width in bytes.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

var pageSize = uint64(os.Getpagesize())

// guard runs access with fault trapping enabled for the calling goroutine.
// A fault inside access becomes an AccessViolation at the faulting address
// (or at addr if the runtime did not report one).
func guard(op string, addr uint64, access func()) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(runtime.Error); !ok {
			panic(r)
		}
		at := addr
		if fault, ok := r.(interface{ Addr() uintptr }); ok {
			at = uint64(fault.Addr())
		}
		slog.Debug("memory fault", "op", op, "addr", addr, "fault", at)
		err = lasterror.New(op, at, lasterror.AccessViolation)
	}()
	access()
	return nil
}

// pointer converts a raw address. Addresses may point anywhere, including
// into Go-managed memory, so pointer checks are disabled here.
//
//go:nocheckptr
//go:noinline
func pointer(addr uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

// Read loads a T from addr. Unaligned addresses are accessed as-is.
func Read[T Scalar](addr uint64) (v T, err error) {
	err = guard("read", addr, func() {
		v = *(*T)(pointer(addr))
	})
	return v, err
}

// Write stores v at addr and returns the value it replaced.
func Write[T Scalar](addr uint64, v T) (prev T, err error) {
	err = guard("write", addr, func() {
		p := (*T)(pointer(addr))
		prev = *p
		*p = v
	})
	return prev, err
}

// WriteWidth stores the low width bytes of value at addr and returns the
// previous contents zero-extended to 64 bits. Width must be 1, 2, 4 or 8.
func WriteWidth(addr uint64, width int, value uint64) (uint64, error) {
	switch width {
	case 1:
		prev, err := Write(addr, uint8(value))
		return uint64(prev), err
	case 2:
		prev, err := Write(addr, uint16(value))
		return uint64(prev), err
	case 4:
		prev, err := Write(addr, uint32(value))
		return uint64(prev), err
	case 8:
		return Write(addr, value)
	}
	return 0, lasterror.Errorf("write", addr, lasterror.InvalidParameter, "unsupported width %d", width)
}

// Load copies size bytes starting at addr. The copy proceeds one page at a
// time; if a page faults, Load returns the bytes copied before it together
// with an AccessViolation.
func Load(addr uint64, size int) ([]byte, error) {
	buf := make([]byte, size)
	n := 0
	for n < size {
		at := addr + uint64(n)
		chunk := int(pageSize - at%pageSize)
		if chunk > size-n {
			chunk = size - n
		}
		err := guard("load", at, func() {
			copy(buf[n:n+chunk], unsafe.Slice((*byte)(pointer(at)), chunk))
		})
		if err != nil {
			return buf[:n], err
		}
		n += chunk
	}
	return buf, nil
}

// Store copies data to addr one page at a time and returns how many bytes
// were written before a fault, if any.
func Store(addr uint64, data []byte) (int, error) {
	n := 0
	for n < len(data) {
		at := addr + uint64(n)
		chunk := int(pageSize - at%pageSize)
		if chunk > len(data)-n {
			chunk = len(data) - n
		}
		err := guard("store", at, func() {
			copy(unsafe.Slice((*byte)(pointer(at)), chunk), data[n:n+chunk])
		})
		if err != nil {
			return n, err
		}
		n += chunk
	}
	return n, nil
}
