package region

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"leaker/internal/lasterror"
)

// mapping is one line of /proc/self/maps.
type mapping struct {
	start, end uint64
	perms      string
	offset     uint64
	path       string
}

func (m mapping) fileBacked() bool { return strings.HasPrefix(m.path, "/") }

func (m mapping) protect() uint32 {
	if len(m.perms) < 3 {
		return PageNoAccess
	}
	switch m.perms[:3] {
	case "r--":
		return PageReadOnly
	case "rw-", "-w-":
		return PageReadWrite
	case "--x":
		return PageExecute
	case "r-x":
		return PageExecuteRead
	case "rwx", "-wx":
		return PageExecuteReadWrite
	}
	return PageNoAccess
}

var userLimit = func() uint64 {
	switch runtime.GOARCH {
	case "amd64":
		return 1 << 47
	case "arm64":
		return 1 << 48
	}
	if Native == 32 {
		return 1 << 32
	}
	return 1 << 47
}()

// parseMapsLine parses
//
//	00400000-0040b000 r-xp 00000000 fd:01 41 /usr/bin/cat
//
// The path column is optional.
func parseMapsLine(line string) (mapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return mapping{}, fmt.Errorf("malformed maps line %q", line)
	}
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return mapping{}, fmt.Errorf("malformed range %q", fields[0])
	}
	var m mapping
	var err error
	if m.start, err = strconv.ParseUint(lo, 16, 64); err != nil {
		return mapping{}, err
	}
	if m.end, err = strconv.ParseUint(hi, 16, 64); err != nil {
		return mapping{}, err
	}
	m.perms = fields[1]
	if m.offset, err = strconv.ParseUint(fields[2], 16, 64); err != nil {
		return mapping{}, err
	}
	if len(fields) > 5 {
		m.path = strings.Join(fields[5:], " ")
	}
	return m, nil
}

func readMaps() ([]mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var maps []mapping
	s := bufio.NewScanner(f)
	for s.Scan() {
		m, err := parseMapsLine(s.Text())
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, s.Err()
}

// describe builds the region record for addr from a sorted mapping list.
func describe(maps []mapping, addr uint64) (Info, bool) {
	var prevEnd uint64
	for i, m := range maps {
		if addr < m.start {
			return Info{
				BaseAddress: prevEnd,
				RegionSize:  m.start - prevEnd,
				State:       MemFree,
				Protect:     PageNoAccess,
			}, true
		}
		if addr < m.end {
			return mapped(maps, i), true
		}
		prevEnd = m.end
	}
	if addr >= userLimit || prevEnd >= userLimit {
		return Info{}, false
	}
	return Info{
		BaseAddress: prevEnd,
		RegionSize:  userLimit - prevEnd,
		State:       MemFree,
		Protect:     PageNoAccess,
	}, true
}

func mapped(maps []mapping, i int) Info {
	m := maps[i]
	info := Info{
		BaseAddress:       m.start,
		AllocationBase:    m.start,
		AllocationProtect: m.protect(),
		RegionSize:        m.end - m.start,
		State:             MemCommit,
		Protect:           m.protect(),
		Type:              MemPrivate,
	}
	shared := len(m.perms) > 3 && m.perms[3] == 's'
	switch {
	case m.fileBacked():
		info.Type = MemMapped
		first := i
		for first > 0 && maps[first-1].path == m.path && maps[first-1].end == maps[first].start {
			first--
		}
		info.AllocationBase = maps[first].start
		info.AllocationProtect = maps[first].protect()
		for _, other := range maps {
			if other.path == m.path && strings.Contains(other.perms, "x") {
				info.Type = MemImage
				break
			}
		}
	case shared:
		info.Type = MemMapped
	case m.protect() == PageNoAccess:
		info.State = MemReserve
	}
	return info
}

func platformQuery(addr uint64, buf unsafe.Pointer, size uintptr) (uintptr, error) {
	maps, err := readMaps()
	if err != nil {
		return 0, lasterror.OS("query", addr, err)
	}
	info, ok := describe(maps, addr)
	if !ok {
		return 0, lasterror.OS("query", addr, unix.EINVAL)
	}
	switch size {
	case unsafe.Sizeof(Basic64{}):
		*(*Basic64)(buf) = Basic64{
			BaseAddress:       info.BaseAddress,
			AllocationBase:    info.AllocationBase,
			AllocationProtect: info.AllocationProtect,
			RegionSize:        info.RegionSize,
			State:             info.State,
			Protect:           info.Protect,
			Type:              info.Type,
		}
	case unsafe.Sizeof(Basic32{}):
		if info.BaseAddress > math.MaxUint32 || info.AllocationBase > math.MaxUint32 || info.RegionSize > math.MaxUint32 {
			return 0, lasterror.OS("query", addr, unix.EOVERFLOW)
		}
		*(*Basic32)(buf) = Basic32{
			BaseAddress:       uint32(info.BaseAddress),
			AllocationBase:    uint32(info.AllocationBase),
			AllocationProtect: info.AllocationProtect,
			RegionSize:        uint32(info.RegionSize),
			State:             info.State,
			Protect:           info.Protect,
			Type:              info.Type,
		}
	default:
		return 0, lasterror.OS("query", addr, unix.EINVAL)
	}
	return size, nil
}
