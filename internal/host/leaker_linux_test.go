package host

import (
	"testing"

	"leaker/internal/region"
)

func TestRegionAccessors(t *testing.T) {
	l := newLeaker(t)
	addr, err := l.Alloc(3 * 4096)
	if err != nil {
		t.Fatal(err)
	}

	base, err := l.MemBaseAddress(addr + 8)
	if err != nil || base > addr {
		t.Errorf("MemBaseAddress = %#x, %v; want <= %#x", base, err, addr)
	}
	size, err := l.MemSize(addr)
	if err != nil || size < 3*4096 {
		t.Errorf("MemSize = %#x, %v", size, err)
	}
	state, _ := l.MemState(addr)
	protect, _ := l.MemProtect(addr)
	typ, _ := l.MemType(addr)
	if state != region.MemCommit || protect != region.PageReadWrite || typ != region.MemPrivate {
		t.Errorf("state %#x protect %#x type %#x", state, protect, typ)
	}

	var seen bool
	if err := l.Regions(func(info region.Info) bool {
		if info.BaseAddress <= addr && addr < info.BaseAddress+info.RegionSize {
			seen = true
			return false
		}
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("Regions did not visit the scratch buffer")
	}
}
