package region

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"leaker/internal/lasterror"
)

var (
	modkernel32      = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualQuery = modkernel32.NewProc("VirtualQuery")
)

// platformQuery returns the byte count VirtualQuery reports, which callers compare
// against the layout they asked for.
func platformQuery(addr uint64, buf unsafe.Pointer, size uintptr) (uintptr, error) {
	r1, _, e1 := procVirtualQuery.Call(uintptr(addr), uintptr(buf), size)
	if r1 == 0 {
		return 0, lasterror.OS("query", addr, e1)
	}
	return r1, nil
}
