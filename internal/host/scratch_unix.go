//go:build unix

package host

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func allocScratch(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freeScratch(b []byte) error { return unix.Munmap(b) }

func addrOf(b []byte) uint64 { return uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))) }
