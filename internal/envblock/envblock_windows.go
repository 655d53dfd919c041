package envblock

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	processBasicInformation = 0
	threadBasicInformation  = 0
)

type threadBasicInfo struct {
	ExitStatus     windows.NTStatus
	TebBaseAddress uintptr
	ClientID       struct {
		UniqueProcess uintptr
		UniqueThread  uintptr
	}
	AffinityMask uintptr
	Priority     int32
	BasePriority int32
}

var (
	ntdll         = windows.NewLazySystemDLL("ntdll.dll")
	processSlot   slot[*windows.LazyProc]
	threadSlot    slot[*windows.LazyProc]
	resolveNtProc = func(name string) func() (*windows.LazyProc, error) {
		return func() (*windows.LazyProc, error) {
			p := ntdll.NewProc(name)
			if err := p.Find(); err != nil {
				return nil, err
			}
			return p, nil
		}
	}
)

func processBlock() uint64 {
	proc, ok := processSlot.get("NtQueryInformationProcess", resolveNtProc("NtQueryInformationProcess"))
	if !ok {
		return 0
	}
	var info windows.PROCESS_BASIC_INFORMATION
	var n uint32
	status, _, _ := proc.Call(
		uintptr(windows.CurrentProcess()),
		processBasicInformation,
		uintptr(unsafe.Pointer(&info)),
		unsafe.Sizeof(info),
		uintptr(unsafe.Pointer(&n)),
	)
	if status != 0 {
		return 0
	}
	if uintptr(n) < unsafe.Offsetof(info.PebBaseAddress)+unsafe.Sizeof(info.PebBaseAddress) {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(info.PebBaseAddress)))
}

func threadBlock(tid uint32) uint64 {
	proc, ok := threadSlot.get("NtQueryInformationThread", resolveNtProc("NtQueryInformationThread"))
	if !ok {
		return 0
	}

	if tid == 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		tid = windows.GetCurrentThreadId()
	}
	h, err := windows.OpenThread(windows.THREAD_QUERY_INFORMATION, false, tid)
	if err != nil {
		return 0
	}
	defer windows.CloseHandle(h)

	var info threadBasicInfo
	var n uint32
	status, _, _ := proc.Call(
		uintptr(h),
		threadBasicInformation,
		uintptr(unsafe.Pointer(&info)),
		unsafe.Sizeof(info),
		uintptr(unsafe.Pointer(&n)),
	)
	if status != 0 {
		return 0
	}
	if uintptr(n) < unsafe.Offsetof(info.TebBaseAddress)+unsafe.Sizeof(info.TebBaseAddress) {
		return 0
	}
	return uint64(info.TebBaseAddress)
}
