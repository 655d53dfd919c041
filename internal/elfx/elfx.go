// Package elfx opens ELF executables and indexes their symbol tables by
// address.
package elfx

import (
	"debug/elf"
	"fmt"
	"sort"
	"strings"
)

type Image struct {
	Path  string
	File  *elf.File
	Loads []Seg
	Text  Section
	Syms  []Sym
}

type Seg struct {
	Vaddr, Memsz uint64
	Flags        elf.ProgFlag
}

type Section struct {
	Name     string
	VA, Size uint64
}

// Sym is a defined function or data symbol. Size may be zero when the
// symbol table does not record one.
type Sym struct {
	Name string
	Addr uint64
	Size uint64
	Func bool
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	im := &Image{Path: path, File: f}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{Vaddr: p.Vaddr, Memsz: p.Memsz, Flags: p.Flags})
	}
	if s := f.Section(".text"); s != nil {
		im.Text = Section{s.Name, s.Addr, s.Size}
	} else {
		// Stripped of section headers; fall back to the executable segment.
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Memsz}
				break
			}
		}
	}

	im.loadSymbols(f.Symbols)
	im.loadSymbols(f.DynamicSymbols)
	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Addr < im.Syms[j].Addr })
	return im, nil
}

func (im *Image) Close() error {
	if im.File == nil {
		return nil
	}
	err := im.File.Close()
	im.File = nil
	return err
}

// loadSymbols appends the defined function and object symbols of one table.
// A missing table is not an error.
func (im *Image) loadSymbols(table func() ([]elf.Symbol, error)) {
	syms, err := table()
	if err != nil {
		return
	}
	for _, s := range syms {
		if s.Value == 0 || s.Section == elf.SHN_UNDEF {
			continue
		}
		typ := elf.ST_TYPE(s.Info)
		if typ != elf.STT_FUNC && typ != elf.STT_OBJECT {
			continue
		}
		im.Syms = append(im.Syms, Sym{
			Name: strings.TrimSuffix(s.Name, "@plt"),
			Addr: s.Value,
			Size: s.Size,
			Func: typ == elf.STT_FUNC,
		})
	}
}

// FindByName returns the first symbol with the given link name.
func (im *Image) FindByName(name string) (Sym, bool) {
	for _, s := range im.Syms {
		if s.Name == name {
			return s, true
		}
	}
	return Sym{}, false
}

// FindByAddr returns the symbol whose extent contains va. Symbols without
// a size only match their exact address.
func (im *Image) FindByAddr(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Addr > va })
	for i--; i >= 0; i-- {
		s := im.Syms[i]
		if va == s.Addr || va < s.Addr+s.Size {
			return s, true
		}
		if s.Size != 0 {
			break
		}
	}
	return Sym{}, false
}

// InText reports whether va lies inside the text section.
func (im *Image) InText(va uint64) bool {
	return im.Text.Size != 0 && va >= im.Text.VA && va < im.Text.VA+im.Text.Size
}
