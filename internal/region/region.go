// Package region answers "what is mapped here" for addresses in the current
// process, filling the fixed 32-bit or 64-bit basic-information layouts.
package region

import (
	"unsafe"

	"leaker/internal/lasterror"
)

// State values.
const (
	MemCommit  = 0x1000
	MemReserve = 0x2000
	MemFree    = 0x10000
)

// Type values.
const (
	MemPrivate = 0x20000
	MemMapped  = 0x40000
	MemImage   = 0x1000000
)

// Protection values.
const (
	PageNoAccess         = 0x01
	PageReadOnly         = 0x02
	PageReadWrite        = 0x04
	PageWriteCopy        = 0x08
	PageExecute          = 0x10
	PageExecuteRead      = 0x20
	PageExecuteReadWrite = 0x40
	PageGuard            = 0x100
)

// Basic32 is the 32-bit basic-information layout (28 bytes).
type Basic32 struct {
	BaseAddress       uint32
	AllocationBase    uint32
	AllocationProtect uint32
	RegionSize        uint32
	State             uint32
	Protect           uint32
	Type              uint32
}

// Basic64 is the 64-bit basic-information layout (48 bytes).
type Basic64 struct {
	BaseAddress       uint64
	AllocationBase    uint64
	AllocationProtect uint32
	_                 uint32
	RegionSize        uint64
	State             uint32
	Protect           uint32
	Type              uint32
	_                 uint32
}

// Info is the width-independent view of a region record.
type Info struct {
	BaseAddress       uint64
	AllocationBase    uint64
	AllocationProtect uint32
	RegionSize        uint64
	State             uint32
	Protect           uint32
	Type              uint32
}

// Layout is either record layout.
type Layout interface {
	Basic32 | Basic64
}

// Query fills a record of the requested width for the region containing
// addr. bits must be 32 or 64. A platform answer of the wrong size is an
// InvalidParameter; platform errors are returned unchanged.
func Query(addr uint64, bits int) (Info, error) {
	switch bits {
	case 32:
		var b Basic32
		if err := fill(addr, &b); err != nil {
			return Info{}, err
		}
		return Info{
			BaseAddress:       uint64(b.BaseAddress),
			AllocationBase:    uint64(b.AllocationBase),
			AllocationProtect: b.AllocationProtect,
			RegionSize:        uint64(b.RegionSize),
			State:             b.State,
			Protect:           b.Protect,
			Type:              b.Type,
		}, nil
	case 64:
		var b Basic64
		if err := fill(addr, &b); err != nil {
			return Info{}, err
		}
		return Info{
			BaseAddress:       b.BaseAddress,
			AllocationBase:    b.AllocationBase,
			AllocationProtect: b.AllocationProtect,
			RegionSize:        b.RegionSize,
			State:             b.State,
			Protect:           b.Protect,
			Type:              b.Type,
		}, nil
	}
	return Info{}, lasterror.Errorf("query", addr, lasterror.InvalidParameter, "unsupported width %d", bits)
}

// query fills buf with a record of size bytes and reports how many bytes
// the platform wrote.
var query = platformQuery

func fill[L Layout](addr uint64, out *L) error {
	want := unsafe.Sizeof(*out)
	n, err := query(addr, unsafe.Pointer(out), want)
	if err != nil {
		return err
	}
	if n != want {
		return lasterror.Errorf("query", addr, lasterror.InvalidParameter, "got %d bytes, want %d", n, want)
	}
	return nil
}

// Native is the record width matching the running process.
const Native = int(unsafe.Sizeof(uintptr(0))) * 8

// Walk visits every region from address zero upwards until fn returns false
// or the address space is exhausted. Query failures past the first region
// end the walk without error.
func Walk(fn func(Info) bool) error {
	var addr uint64
	first := true
	for {
		info, err := Query(addr, Native)
		if err != nil {
			if first {
				return err
			}
			return nil
		}
		first = false
		if !fn(info) {
			return nil
		}
		next := info.BaseAddress + info.RegionSize
		if info.RegionSize == 0 || next <= addr {
			return nil
		}
		addr = next
	}
}

// StateName renders a State value.
func StateName(s uint32) string {
	switch s {
	case MemCommit:
		return "commit"
	case MemReserve:
		return "reserve"
	case MemFree:
		return "free"
	}
	return "unknown"
}

// TypeName renders a Type value.
func TypeName(t uint32) string {
	switch t {
	case MemPrivate:
		return "private"
	case MemMapped:
		return "mapped"
	case MemImage:
		return "image"
	case 0:
		return "-"
	}
	return "unknown"
}

// ProtectName renders the low protection bits in rwx form.
func ProtectName(p uint32) string {
	var s string
	switch p &^ PageGuard {
	case PageNoAccess:
		s = "---"
	case PageReadOnly:
		s = "r--"
	case PageReadWrite, PageWriteCopy:
		s = "rw-"
	case PageExecute:
		s = "--x"
	case PageExecuteRead:
		s = "r-x"
	case PageExecuteReadWrite:
		s = "rwx"
	case 0:
		s = "   "
	default:
		s = "???"
	}
	if p&PageGuard != 0 {
		s += "g"
	}
	return s
}
