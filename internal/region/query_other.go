//go:build !linux && !windows

package region

import (
	"errors"
	"unsafe"

	"leaker/internal/lasterror"
)

func platformQuery(addr uint64, _ unsafe.Pointer, _ uintptr) (uintptr, error) {
	return 0, lasterror.OS("query", addr, errors.ErrUnsupported)
}
