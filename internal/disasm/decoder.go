package disasm

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"

	"golang.org/x/arch/x86/x86asm"

	"leaker/internal/lasterror"
	"leaker/internal/memory"
)

// maxInstLen is the architectural limit on x86 instruction length.
const maxInstLen = 15

// Config is an immutable decode configuration.
type Config struct {
	Bits   int
	Syntax Syntax
}

// DefaultConfig decodes in the process's native width with the default
// syntax.
func DefaultConfig() Config {
	return Config{Bits: memory.PointerSize * 8, Syntax: Default}
}

// SymLookup resolves an address to a symbol name and its base address.
type SymLookup func(addr uint64) (name string, base uint64)

// Decoder pairs a configuration with stateless decode logic. Configuration
// changes swap the whole Config, so a listing always sees a consistent
// pair.
type Decoder struct {
	cfg    atomic.Pointer[Config]
	lookup SymLookup
}

// NewDecoder returns a decoder using cfg. lookup may be nil.
func NewDecoder(cfg Config, lookup SymLookup) (*Decoder, error) {
	if !ValidBits(cfg.Bits) {
		return nil, lasterror.Errorf("configure", 0, lasterror.InvalidArgument, "unsupported width %d", cfg.Bits)
	}
	if _, ok := ParseSyntax(string(cfg.Syntax)); !ok {
		return nil, lasterror.Errorf("configure", 0, lasterror.InvalidArgument, "unknown syntax %q", cfg.Syntax)
	}
	d := &Decoder{lookup: lookup}
	d.cfg.Store(&cfg)
	return d, nil
}

// Config returns the current configuration.
func (d *Decoder) Config() Config { return *d.cfg.Load() }

func (d *Decoder) update(change func(*Config)) Config {
	for {
		old := d.cfg.Load()
		next := *old
		change(&next)
		if d.cfg.CompareAndSwap(old, &next) {
			return *old
		}
	}
}

// SetSyntax switches the listing syntax and returns the previous one. An
// unknown name is rejected with InvalidArgument and changes nothing.
func (d *Decoder) SetSyntax(name string) (Syntax, error) {
	s, ok := ParseSyntax(name)
	if !ok {
		return d.Config().Syntax, lasterror.Errorf("syntax", 0, lasterror.InvalidArgument, "unknown syntax %q", name)
	}
	return d.update(func(c *Config) { c.Syntax = s }).Syntax, nil
}

// SetBits switches the decode mode and returns the previous one.
func (d *Decoder) SetBits(bits int) (int, error) {
	if !ValidBits(bits) {
		return d.Config().Bits, lasterror.Errorf("bits", 0, lasterror.InvalidArgument, "unsupported width %d", bits)
	}
	return d.update(func(c *Config) { c.Bits = bits }).Bits, nil
}

// Measure returns the number of bytes spanned by up to n instructions at
// addr. It stops quietly at the first instruction that cannot be decoded,
// whether the bytes are invalid or unreadable.
func (d *Decoder) Measure(addr uint64, n int) uint64 {
	return measure(d.Config(), addr, n)
}

func measure(cfg Config, addr uint64, n int) uint64 {
	var size uint64
	for i := 0; i < n; i++ {
		window, err := memory.Load(addr+size, maxInstLen)
		if len(window) == 0 {
			slog.Debug("disasm: measure stopped", "addr", addr+size, "decoded", i, "err", err)
			break
		}
		inst, derr := x86asm.Decode(window, cfg.Bits)
		if derr != nil {
			slog.Debug("disasm: measure stopped", "addr", addr+size, "decoded", i, "err", derr)
			break
		}
		size += uint64(inst.Len)
	}
	return size
}

// Listing is a lazily decoded run of instructions over a fixed byte range.
// It can be iterated once.
type Listing struct {
	cfg    Config
	addr   uint64
	code   []byte
	lookup SymLookup
	used   bool
	err    error
}

// Decode copies [addr, addr+size) and prepares it for iteration. A fault
// while copying is an AccessViolation.
func (d *Decoder) Decode(addr, size uint64) (*Listing, error) {
	return d.decode(d.Config(), addr, size)
}

func (d *Decoder) decode(cfg Config, addr, size uint64) (*Listing, error) {
	code, err := memory.Load(addr, int(size))
	if err != nil {
		return nil, err
	}
	return &Listing{cfg: cfg, addr: addr, code: code, lookup: d.lookup}, nil
}

// All yields the instructions in address order. Later calls yield nothing.
func (l *Listing) All() iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		if l.used {
			return
		}
		l.used = true
		for off := 0; off < len(l.code); {
			inst, err := x86asm.Decode(l.code[off:], l.cfg.Bits)
			if err != nil {
				l.err = err
				return
			}
			pc := l.addr + uint64(off)
			mnemonic, operands := split(l.format(inst, pc))
			if !yield(Instruction{Addr: pc, Mnemonic: mnemonic, Operands: operands, Len: inst.Len}) {
				return
			}
			off += inst.Len
		}
	}
}

// Err reports a decode failure that ended iteration early.
func (l *Listing) Err() error { return l.err }

func (l *Listing) format(inst x86asm.Inst, pc uint64) string {
	var lookup x86asm.SymLookup
	if l.lookup != nil {
		lookup = x86asm.SymLookup(l.lookup)
	}
	switch l.cfg.Syntax {
	case ATT:
		return x86asm.GNUSyntax(inst, pc, lookup)
	default:
		return x86asm.IntelSyntax(inst, pc, lookup)
	}
}

// Disassemble writes exactly n instruction lines starting at addr, separated
// by newlines with none after the last. If fewer than n instructions could
// be decoded, the lines that were produced are written and the error is
// DecodeIncomplete.
func (d *Decoder) Disassemble(w io.Writer, addr uint64, n int) error {
	cfg := d.Config()
	size := measure(cfg, addr, n)
	listing, err := d.decode(cfg, addr, size)
	if err != nil {
		return err
	}

	produced := 0
	for inst := range listing.All() {
		if produced > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, inst.Line(cfg.Bits)); err != nil {
			return err
		}
		produced++
	}
	if produced < n {
		if lerr := listing.Err(); lerr != nil && !errors.Is(lerr, x86asm.ErrTruncated) {
			return lasterror.Errorf("disassemble", addr, lasterror.DecodeIncomplete, "decoded %d of %d instructions: %v", produced, n, lerr)
		}
		return lasterror.Errorf("disassemble", addr, lasterror.DecodeIncomplete, "decoded %d of %d instructions", produced, n)
	}
	return nil
}
