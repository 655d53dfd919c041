// Package host is the boundary between a scripting host and the
// introspection core. Every operation takes and returns primitive values;
// failures are returned and also recorded in a last-error slot that the
// host can query afterwards.
package host

import (
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	"leaker/internal/config"
	"leaker/internal/disasm"
	"leaker/internal/dump"
	"leaker/internal/envblock"
	"leaker/internal/lasterror"
	"leaker/internal/memory"
	"leaker/internal/region"
	"leaker/internal/symbols"
)

// Leaker exposes the core operations on the calling process.
type Leaker struct {
	dec      *disasm.Decoder
	rowWidth int
	syms     *symbols.Table
	last     lasterror.Slot

	mu      sync.Mutex
	scratch map[uint64][]byte
}

// New builds a Leaker from cfg. syms may be nil, in which case addresses
// must be numeric and listings carry no symbol names.
func New(cfg *config.Config, syms *symbols.Table) (*Leaker, error) {
	var lookup disasm.SymLookup
	if syms != nil && cfg.Symbolize {
		lookup = syms.Lookup
	}
	dec, err := disasm.NewDecoder(cfg.Decoder(), lookup)
	if err != nil {
		return nil, err
	}
	if _, err := dump.New(cfg.Bits, cfg.RowWidth); err != nil {
		return nil, err
	}
	return &Leaker{
		dec:      dec,
		rowWidth: cfg.RowWidth,
		syms:     syms,
		scratch:  make(map[uint64][]byte),
	}, nil
}

func (l *Leaker) fail(err error) error {
	if err != nil {
		slog.Debug("host: operation failed", "err", err)
	}
	return l.last.Record(err)
}

// Breakpoint raises a trap in the calling thread. Without a debugger
// attached the process dies.
func (l *Leaker) Breakpoint() { runtime.Breakpoint() }

func (l *Leaker) Syntax() string { return string(l.dec.Config().Syntax) }

// SetSyntax changes the listing syntax and returns the previous one.
func (l *Leaker) SetSyntax(s string) (string, error) {
	prev, err := l.dec.SetSyntax(s)
	return string(prev), l.fail(err)
}

func (l *Leaker) Bits() int { return l.dec.Config().Bits }

// SetBits changes the decode width and returns the previous one.
func (l *Leaker) SetBits(bits int) (int, error) {
	prev, err := l.dec.SetBits(bits)
	return prev, l.fail(err)
}

// Disassemble renders n instructions at addr.
func (l *Leaker) Disassemble(addr uint64, n int) (string, error) {
	var sb strings.Builder
	err := l.dec.Disassemble(&sb, addr, n)
	return sb.String(), l.fail(err)
}

// Dump renders count elements of the named type at addr.
func (l *Leaker) Dump(addr uint64, count int, typ string) (string, error) {
	k, err := dump.ParseKind(typ)
	if err != nil {
		return "", l.fail(err)
	}
	d, err := dump.New(l.Bits(), l.rowWidth)
	if err != nil {
		return "", l.fail(err)
	}
	var sb strings.Builder
	err = d.Dump(&sb, addr, count, k)
	return sb.String(), l.fail(err)
}

// Value is a scalar read from memory as its raw bit pattern.
type Value struct {
	Kind dump.Kind
	Bits uint64
}

// Uint returns the zero-extended value.
func (v Value) Uint() uint64 { return v.Bits }

// Int returns the value sign-extended from its width.
func (v Value) Int() int64 {
	shift := 64 - 8*v.Kind.Size()
	return int64(v.Bits<<shift) >> shift
}

// Float returns the value of a floating-point kind.
func (v Value) Float() float64 {
	if v.Kind == dump.Float32 {
		return float64(math.Float32frombits(uint32(v.Bits)))
	}
	return math.Float64frombits(v.Bits)
}

// Read loads one element of kind k.
func (l *Leaker) Read(k dump.Kind, addr uint64) (Value, error) {
	var bits uint64
	var err error
	switch k.Size() {
	case 1:
		var v uint8
		v, err = memory.Read[uint8](addr)
		bits = uint64(v)
	case 2:
		var v uint16
		v, err = memory.Read[uint16](addr)
		bits = uint64(v)
	case 4:
		var v uint32
		v, err = memory.Read[uint32](addr)
		bits = uint64(v)
	default:
		bits, err = memory.Read[uint64](addr)
	}
	return Value{Kind: k, Bits: bits}, l.fail(err)
}

// ReadType is Read with the kind given by name.
func (l *Leaker) ReadType(typ string, addr uint64) (Value, error) {
	k, err := dump.ParseKind(typ)
	if err != nil {
		return Value{}, l.fail(err)
	}
	return l.Read(k, addr)
}

// Write stores the low width bytes of value and returns the previous
// contents.
func (l *Leaker) Write(addr uint64, width int, value uint64) (uint64, error) {
	prev, err := memory.WriteWidth(addr, width, value)
	return prev, l.fail(err)
}

// Store writes an unsigned integer of size bytes, clamping size to 8, and
// returns the number of bytes it attempted.
func (l *Leaker) Store(addr uint64, size int, value uint64) (int, error) {
	size = min(size, 8)
	_, err := l.Write(addr, size, value)
	return size, err
}

// Load copies size bytes from addr.
func (l *Leaker) Load(addr uint64, size int) ([]byte, error) {
	b, err := memory.Load(addr, size)
	return b, l.fail(err)
}

func (l *Leaker) UnicodeString(addr uint64) (string, error) {
	s, err := memory.UnicodeString(addr)
	return s, l.fail(err)
}

func (l *Leaker) AnsiString(addr uint64) (string, error) {
	s, err := memory.AnsiString(addr)
	return s, l.fail(err)
}

// ProcessBlock returns the process control block address, or zero.
func (l *Leaker) ProcessBlock() uint64 { return envblock.ProcessBlock() }

// ThreadBlock returns the control block of thread tid (zero for the
// calling thread), or zero.
func (l *Leaker) ThreadBlock(tid uint32) uint64 { return envblock.ThreadBlock(tid) }

// LastError returns the code of the most recent failure.
func (l *Leaker) LastError() lasterror.Code { return l.last.Get() }

// ErrorMessage returns the text for code.
func (l *Leaker) ErrorMessage(code lasterror.Code) (string, error) {
	msg, err := lasterror.Message(code)
	return msg, l.fail(err)
}

// Region queries the region containing addr using the configured width.
func (l *Leaker) Region(addr uint64) (region.Info, error) {
	info, err := region.Query(addr, l.Bits())
	return info, l.fail(err)
}

// MemBaseAddress returns the allocation base of the region at addr.
func (l *Leaker) MemBaseAddress(addr uint64) (uint64, error) {
	info, err := l.Region(addr)
	return info.AllocationBase, err
}

func (l *Leaker) MemSize(addr uint64) (uint64, error) {
	info, err := l.Region(addr)
	return info.RegionSize, err
}

func (l *Leaker) MemState(addr uint64) (uint64, error) {
	info, err := l.Region(addr)
	return uint64(info.State), err
}

func (l *Leaker) MemProtect(addr uint64) (uint64, error) {
	info, err := l.Region(addr)
	return uint64(info.Protect), err
}

func (l *Leaker) MemType(addr uint64) (uint64, error) {
	info, err := l.Region(addr)
	return uint64(info.Type), err
}

// Regions calls fn for every region of the address space in order.
func (l *Leaker) Regions(fn func(region.Info) bool) error {
	return l.fail(region.Walk(fn))
}

// Alloc maps a zeroed, page-aligned read-write buffer owned by l.
func (l *Leaker) Alloc(size int) (uint64, error) {
	if size <= 0 {
		return 0, l.fail(lasterror.Errorf("alloc", 0, lasterror.InvalidParameter, "size %d", size))
	}
	b, err := allocScratch(size)
	if err != nil {
		return 0, l.fail(lasterror.OS("alloc", 0, err))
	}
	addr := addrOf(b)
	l.mu.Lock()
	l.scratch[addr] = b
	l.mu.Unlock()
	return addr, nil
}

// Free releases a buffer returned by Alloc.
func (l *Leaker) Free(addr uint64) error {
	l.mu.Lock()
	b, ok := l.scratch[addr]
	delete(l.scratch, addr)
	l.mu.Unlock()
	if !ok {
		return l.fail(lasterror.Errorf("free", addr, lasterror.InvalidParameter, "not a scratch buffer"))
	}
	if err := freeScratch(b); err != nil {
		return l.fail(lasterror.OS("free", addr, err))
	}
	return nil
}

// Close releases every scratch buffer.
func (l *Leaker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for addr, b := range l.scratch {
		if err := freeScratch(b); err != nil && first == nil {
			first = err
		}
		delete(l.scratch, addr)
	}
	return first
}

// Resolve turns an address expression into an address.
func (l *Leaker) Resolve(expr string) (uint64, error) {
	addr, err := symbols.Resolve(l.syms, expr)
	if err != nil {
		return 0, l.fail(lasterror.Errorf("resolve", 0, lasterror.InvalidArgument, "%v", err))
	}
	return addr, nil
}

// Describe returns "symbol+off" for addr, or "".
func (l *Leaker) Describe(addr uint64) string {
	if l.syms == nil {
		return ""
	}
	return l.syms.Describe(addr)
}
