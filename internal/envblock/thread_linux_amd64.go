package envblock

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const archGetFS = 0x1003

// threadBlock returns the FS base of the calling thread, which points at its
// thread control block. Other threads' blocks are not reachable from here.
func threadBlock(tid uint32) uint64 {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if tid != 0 && int(tid) != unix.Gettid() {
		return 0
	}
	var fs uint64
	_, _, errno := unix.RawSyscall(unix.SYS_ARCH_PRCTL, archGetFS, uintptr(unsafe.Pointer(&fs)), 0)
	if errno != 0 {
		return 0
	}
	return fs
}
