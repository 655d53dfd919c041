// Package dump renders memory as rows of address, typed hex values and a
// printable-ASCII column.
package dump

import (
	"fmt"
	"io"
	"strings"

	"leaker/internal/lasterror"
	"leaker/internal/memory"
)

const (
	// DefaultWidth is the default row width in bytes.
	DefaultWidth = 16

	divider     = " | "
	placeholder = '.'
)

// Dumper formats rows of Width bytes with addresses padded to Bits/4 hex
// digits.
type Dumper struct {
	Bits  int
	Width int
}

// New validates the parameters and returns a Dumper. Any positive width is
// accepted; a dump fails when a row cannot hold one element of its kind.
func New(bits, width int) (Dumper, error) {
	d := Dumper{Bits: bits, Width: width}
	if err := d.validate(1); err != nil {
		return Dumper{}, err
	}
	return d, nil
}

// validate checks the address width and that a row holds at least one
// element of size bytes.
func (d Dumper) validate(size int) error {
	if d.Bits != 16 && d.Bits != 32 && d.Bits != 64 {
		return lasterror.Errorf("dump", 0, lasterror.InvalidParameter, "unsupported width %d", d.Bits)
	}
	if d.Width < size {
		return lasterror.Errorf("dump", 0, lasterror.InvalidParameter, "row width %d cannot hold a %d-byte element", d.Width, size)
	}
	return nil
}

// Dump renders count elements of type T starting at addr.
func Dump[T Element](w io.Writer, d Dumper, addr uint64, count int) error {
	return d.Dump(w, addr, count, KindOf[T]())
}

// Dump renders count elements of kind k starting at addr. Every row ends in
// a newline. A fault stops the dump after the last complete row. Bytes of
// Width that do not fill a whole element are left out of every row.
func (d Dumper) Dump(w io.Writer, addr uint64, count int, k Kind) error {
	size := k.Size()
	if err := d.validate(size); err != nil {
		return err
	}
	perRow := d.Width / size
	rowBytes := perRow * size
	blank := " " + strings.Repeat(" ", k.width())

	var sb strings.Builder
	for done := 0; done < count; done += perRow {
		n := min(perRow, count-done)
		rowAddr := addr + uint64(done*size)
		raw, err := memory.Load(rowAddr, n*size)
		if err != nil {
			return err
		}

		sb.Reset()
		fmt.Fprintf(&sb, "%0*x", d.Bits/4, rowAddr)
		sb.WriteString(" |")
		for i := range n {
			sb.WriteByte(' ')
			sb.WriteString(k.format(raw[i*size:]))
		}
		for range perRow - n {
			sb.WriteString(blank)
		}
		sb.WriteString(divider)
		for _, b := range raw {
			if b >= 0x20 && b <= 0x7e {
				sb.WriteByte(b)
			} else {
				sb.WriteByte(placeholder)
			}
		}
		sb.WriteString(strings.Repeat(" ", rowBytes-len(raw)))
		sb.WriteByte('\n')

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
