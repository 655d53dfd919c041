// Package disasm decodes x86 machine code in the current process by
// instruction count: it first measures how many bytes N instructions span,
// then decodes exactly that range.
package disasm

import (
	"fmt"
	"strings"
)

// Syntax selects the assembly dialect of rendered listings.
type Syntax string

const (
	Default Syntax = "default"
	Intel   Syntax = "intel"
	ATT     Syntax = "att"
)

// ParseSyntax validates a syntax name.
func ParseSyntax(s string) (Syntax, bool) {
	switch Syntax(s) {
	case Default, Intel, ATT:
		return Syntax(s), true
	}
	return "", false
}

// ValidBits reports whether bits is a supported decode mode.
func ValidBits(bits int) bool {
	return bits == 16 || bits == 32 || bits == 64
}

// Instruction is a decoded instruction. It only lives for the duration of
// one listing.
type Instruction struct {
	Addr     uint64
	Mnemonic string
	Operands string
	Len      int
}

// Line renders the instruction as a listing line with the address padded
// to bits/4 hex digits.
func (i Instruction) Line(bits int) string {
	return fmt.Sprintf("%0*x : %s %s", bits/4, i.Addr, i.Mnemonic, i.Operands)
}

var prefixes = map[string]bool{
	"lock": true, "rep": true, "repe": true, "repz": true, "repne": true, "repnz": true,
	"xacquire": true, "xrelease": true, "bnd": true, "notrack": true,
	"data16": true, "data32": true, "addr16": true, "addr32": true,
	"cs": true, "ds": true, "es": true, "fs": true, "gs": true, "ss": true,
}

// split separates formatted text into mnemonic and operands. Leading
// prefixes stay with the mnemonic.
func split(text string) (mnemonic, operands string) {
	rest := strings.TrimSpace(text)
	var head []string
	for {
		word, tail, ok := strings.Cut(rest, " ")
		if !ok {
			head = append(head, rest)
			return strings.Join(head, " "), ""
		}
		head = append(head, word)
		rest = strings.TrimSpace(tail)
		if !prefixes[strings.TrimSuffix(word, ";")] {
			return strings.Join(head, " "), rest
		}
	}
}
