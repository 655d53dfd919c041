// Package symbols maps between symbol names and runtime addresses in the
// running executable.
package symbols

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ianlancetaylor/demangle"

	"leaker/internal/elfx"
)

const cacheSize = 4096

// anchorName is the link name of anchor, used to compute the load bias of
// position-independent executables.
const anchorName = "leaker/internal/symbols.anchor"

//go:noinline
func anchor() {}

// Table resolves symbols of one loaded image. Addresses it hands out are
// runtime addresses (link address plus load bias).
type Table struct {
	img   *elfx.Image
	bias  uint64
	cache *lru.Cache
}

var self struct {
	once sync.Once
	t    *Table
	err  error
}

// Self returns the table of the running executable. It is opened once.
func Self() (*Table, error) {
	self.once.Do(func() {
		self.t, self.err = open()
	})
	return self.t, self.err
}

func open() (*Table, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	img, err := elfx.Open(exe)
	if err != nil {
		return nil, err
	}
	sym, ok := img.FindByName(anchorName)
	if !ok {
		img.Close()
		return nil, fmt.Errorf("%s: symbol table has no %s", exe, anchorName)
	}
	runtimeAddr := uint64(reflect.ValueOf(anchor).Pointer())
	return New(img, runtimeAddr-sym.Addr)
}

// New wraps an opened image whose symbols are displaced by bias at runtime.
func New(img *elfx.Image, bias uint64) (*Table, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Table{img: img, bias: bias, cache: cache}, nil
}

// Bias is the difference between runtime and link addresses.
func (t *Table) Bias() uint64 { return t.bias }

type hit struct {
	name string
	base uint64
}

// Lookup returns the name of the symbol containing addr and its runtime
// start address, or "" and 0. Its signature matches the disassembler's
// symbol callback.
func (t *Table) Lookup(addr uint64) (string, uint64) {
	if v, ok := t.cache.Get(addr); ok {
		h := v.(hit)
		return h.name, h.base
	}
	var h hit
	if sym, ok := t.img.FindByAddr(addr - t.bias); ok {
		h = hit{name: Demangle(sym.Name), base: sym.Addr + t.bias}
	}
	t.cache.Add(addr, h)
	return h.name, h.base
}

// Address returns the runtime address of a symbol given by link name or
// demangled name.
func (t *Table) Address(name string) (uint64, bool) {
	if sym, ok := t.img.FindByName(name); ok {
		return sym.Addr + t.bias, true
	}
	for _, sym := range t.img.Syms {
		if Demangle(sym.Name) == name {
			return sym.Addr + t.bias, true
		}
	}
	return 0, false
}

// Describe renders addr as "name+0xoff", or "" if no symbol contains it.
func (t *Table) Describe(addr uint64) string {
	name, base := t.Lookup(addr)
	if name == "" {
		return ""
	}
	if addr == base {
		return name
	}
	return fmt.Sprintf("%s+%#x", name, addr-base)
}

// Demangle returns the readable form of a C++ or Rust link name, or name
// unchanged.
func Demangle(name string) string {
	return demangle.Filter(name, demangle.NoClones)
}

// Resolve parses an address expression: a 0x-prefixed hex number, a
// decimal number, or a symbol name with an optional +offset. t may be nil,
// in which case only numbers are accepted.
func Resolve(t *Table, expr string) (uint64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("empty address")
	}
	if v, err := strconv.ParseUint(expr, 0, 64); err == nil {
		return v, nil
	}

	name, off := expr, uint64(0)
	if i := strings.LastIndexByte(expr, '+'); i > 0 {
		v, err := strconv.ParseUint(strings.TrimSpace(expr[i+1:]), 0, 64)
		if err == nil {
			name, off = strings.TrimSpace(expr[:i]), v
		}
	}
	if t == nil {
		return 0, fmt.Errorf("%q is not a number and no symbol table is loaded", expr)
	}
	addr, ok := t.Address(name)
	if !ok {
		return 0, fmt.Errorf("unknown symbol %q", name)
	}
	return addr + off, nil
}
