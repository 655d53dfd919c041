//go:build !unix && !windows

package host

import (
	"errors"
	"unsafe"
)

func allocScratch(int) ([]byte, error) { return nil, errors.ErrUnsupported }

func freeScratch([]byte) error { return errors.ErrUnsupported }

func addrOf(b []byte) uint64 { return uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))) }
