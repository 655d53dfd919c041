package region

import (
	"errors"
	"math"
	"os"
	"reflect"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"leaker/internal/lasterror"
)

func TestParseMapsLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want mapping
	}{
		{
			line: "00400000-0040b000 r-xp 00000000 fd:01 41   /usr/bin/cat",
			want: mapping{start: 0x400000, end: 0x40b000, perms: "r-xp", path: "/usr/bin/cat"},
		},
		{
			line: "7ffd1000-7ffd2000 rw-p 00000000 00:00 0 [stack]",
			want: mapping{start: 0x7ffd1000, end: 0x7ffd2000, perms: "rw-p", path: "[stack]"},
		},
		{
			line: "c000000000-c000400000 rw-p 00000000 00:00 0",
			want: mapping{start: 0xc000000000, end: 0xc000400000, perms: "rw-p"},
		},
		{
			line: "10000-11000 r--p 00002000 08:01 7 /tmp/with space",
			want: mapping{start: 0x10000, end: 0x11000, perms: "r--p", offset: 0x2000, path: "/tmp/with space"},
		},
	}
	for _, tt := range tests {
		got, err := parseMapsLine(tt.line)
		if err != nil {
			t.Fatalf("parseMapsLine(%q): %v", tt.line, err)
		}
		if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(mapping{})); diff != "" {
			t.Errorf("parseMapsLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}

	if _, err := parseMapsLine("garbage"); err == nil {
		t.Error("parseMapsLine(garbage) succeeded")
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	maps := []mapping{
		{start: 0x10000, end: 0x11000, perms: "r--p", path: "/bin/app"},
		{start: 0x11000, end: 0x14000, perms: "r-xp", path: "/bin/app"},
		{start: 0x20000, end: 0x21000, perms: "rw-p"},
		{start: 0x21000, end: 0x22000, perms: "---p"},
		{start: 0x30000, end: 0x31000, perms: "r--s", path: "/data/file"},
		{start: 0x40000, end: 0x41000, perms: "rw-s"},
	}

	tests := []struct {
		name string
		addr uint64
		want Info
	}{
		{"below first", 0x500, Info{BaseAddress: 0, RegionSize: 0x10000, State: MemFree, Protect: PageNoAccess}},
		{"image text", 0x12345, Info{BaseAddress: 0x11000, AllocationBase: 0x10000, AllocationProtect: PageReadOnly, RegionSize: 0x3000, State: MemCommit, Protect: PageExecuteRead, Type: MemImage}},
		{"gap", 0x15000, Info{BaseAddress: 0x14000, RegionSize: 0xc000, State: MemFree, Protect: PageNoAccess}},
		{"private", 0x20010, Info{BaseAddress: 0x20000, AllocationBase: 0x20000, AllocationProtect: PageReadWrite, RegionSize: 0x1000, State: MemCommit, Protect: PageReadWrite, Type: MemPrivate}},
		{"reserved", 0x21000, Info{BaseAddress: 0x21000, AllocationBase: 0x21000, AllocationProtect: PageNoAccess, RegionSize: 0x1000, State: MemReserve, Protect: PageNoAccess, Type: MemPrivate}},
		{"mapped file", 0x30000, Info{BaseAddress: 0x30000, AllocationBase: 0x30000, AllocationProtect: PageReadOnly, RegionSize: 0x1000, State: MemCommit, Protect: PageReadOnly, Type: MemMapped}},
		{"shared anon", 0x40fff, Info{BaseAddress: 0x40000, AllocationBase: 0x40000, AllocationProtect: PageReadWrite, RegionSize: 0x1000, State: MemCommit, Protect: PageReadWrite, Type: MemMapped}},
		{"tail", 0x50000, Info{BaseAddress: 0x41000, RegionSize: userLimit - 0x41000, State: MemFree, Protect: PageNoAccess}},
	}
	for _, tt := range tests {
		got, ok := describe(maps, tt.addr)
		if !ok {
			t.Fatalf("%s: describe(%#x) not found", tt.name, tt.addr)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: describe(%#x) mismatch (-want +got):\n%s", tt.name, tt.addr, diff)
		}
	}

	if _, ok := describe(maps, userLimit); ok {
		t.Error("describe(userLimit) succeeded")
	}
}

func contains(info Info, addr uint64) bool {
	return info.BaseAddress <= addr && addr-info.BaseAddress < info.RegionSize
}

func TestQueryLiveMappings(t *testing.T) {
	size := os.Getpagesize()
	mem, err := unix.Mmap(-1, 0, 2*size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Munmap(mem)
	if err := unix.Mprotect(mem[size:], unix.PROT_NONE); err != nil {
		t.Fatal(err)
	}
	base := uint64(uintptr(unsafe.Pointer(&mem[0])))

	info, err := Query(base, 64)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(info, base) || info.State != MemCommit || info.Protect != PageReadWrite || info.Type != MemPrivate {
		t.Errorf("rw page = %+v", info)
	}

	guard, err := Query(base+uint64(size), 64)
	if err != nil {
		t.Fatal(err)
	}
	if guard.State != MemReserve || guard.Protect != PageNoAccess {
		t.Errorf("guard page = %+v", guard)
	}

	code := uint64(reflect.ValueOf(TestQueryLiveMappings).Pointer())
	text, err := Query(code, 64)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(text, code) || text.Type != MemImage || text.Protect&(PageExecuteRead|PageExecute|PageExecuteReadWrite) == 0 {
		t.Errorf("text = %+v", text)
	}
}

// lowHint asks the kernel for a mapping below 4 GiB; the hint is not binding.
const lowHint = 0x40000000

//go:nocheckptr
func hintPointer(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) }

// isolatedPage maps a PROT_READ page between two PROT_NONE pages so the
// region around it cannot merge with neighbours. hint may be zero.
func isolatedPage(t *testing.T, hint uintptr) uint64 {
	t.Helper()
	size := os.Getpagesize()
	p, err := unix.MmapPtr(-1, 0, hintPointer(hint), uintptr(3*size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.MunmapPtr(p, uintptr(3*size)) })
	mem := unsafe.Slice((*byte)(p), 3*size)
	if err := unix.Mprotect(mem[size:2*size], unix.PROT_READ); err != nil {
		t.Fatal(err)
	}
	return uint64(uintptr(unsafe.Pointer(&mem[size])))
}

func TestQueryWidthsAgree(t *testing.T) {
	size := uint64(os.Getpagesize())
	addr := isolatedPage(t, lowHint)
	if addr+size > math.MaxUint32 {
		t.Skipf("kernel placed the page at %#x, above the 32-bit range", addr)
	}

	wide, err := Query(addr+8, 64)
	if err != nil {
		t.Fatal(err)
	}
	narrow, err := Query(addr+8, 32)
	if err != nil {
		t.Fatal(err)
	}
	want := Info{
		BaseAddress:       addr,
		AllocationBase:    addr,
		AllocationProtect: PageReadOnly,
		RegionSize:        size,
		State:             MemCommit,
		Protect:           PageReadOnly,
		Type:              MemPrivate,
	}
	if diff := cmp.Diff(want, wide); diff != "" {
		t.Errorf("64-bit record mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, narrow); diff != "" {
		t.Errorf("32-bit record mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery32RejectsHighAddresses(t *testing.T) {
	addr := isolatedPage(t, 0)
	if addr <= math.MaxUint32 {
		t.Skipf("kernel placed the page at %#x, inside the 32-bit range", addr)
	}

	if _, err := Query(addr, 64); err != nil {
		t.Fatal(err)
	}
	_, err := Query(addr, 32)
	if !errors.Is(err, unix.EOVERFLOW) {
		t.Errorf("Query(%#x, 32) err = %v, want EOVERFLOW", addr, err)
	}
	if got := lasterror.CodeOf(err); got != lasterror.Code(unix.EOVERFLOW) {
		t.Errorf("code = %#x, want %#x", uint32(got), uint32(unix.EOVERFLOW))
	}
}

func TestWalkCoversSelf(t *testing.T) {
	var v int
	addr := uint64(uintptr(unsafe.Pointer(&v)))

	var found bool
	var prev uint64
	err := Walk(func(info Info) bool {
		if info.BaseAddress < prev {
			t.Errorf("walk went backwards: %#x after %#x", info.BaseAddress, prev)
		}
		prev = info.BaseAddress
		if contains(info, addr) {
			found = info.State == MemCommit
			return false
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Errorf("walk never reached %#x", addr)
	}
}
