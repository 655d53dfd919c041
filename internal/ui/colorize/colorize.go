// Package colorize highlights x86 listings for terminal output.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Disabled reports whether LEAKER_NO_COLOR is set.
func Disabled() bool {
	return os.Getenv("LEAKER_NO_COLOR") != ""
}

// lexerFor picks the chroma lexer matching a listing syntax: AT&T listings
// go through the GAS lexer, everything else through NASM.
func lexerFor(syntax string) chroma.Lexer {
	candidates := []string{"nasm", "gas"}
	if syntax == "att" {
		candidates = []string{"gas", "nasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func listingStyle() *chroma.Style {
	for _, name := range []string{"listing-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Listing colorizes a multi-line listing produced by the decoder. The
// address column is rendered gray and the rest of each line is tokenized
// with the lexer for syntax. On any failure the input is returned as is.
func Listing(listing, syntax string) string {
	if Disabled() || listing == "" {
		return listing
	}
	lines := strings.Split(listing, "\n")
	for i, line := range lines {
		lines[i] = Line(line, syntax)
	}
	return strings.Join(lines, "\n")
}

// Line colorizes one "address : mnemonic operands" line.
func Line(line, syntax string) string {
	if Disabled() {
		return line
	}
	addr, rest, ok := strings.Cut(line, " : ")
	if !ok || !isHex(addr) {
		return highlight(line, syntax)
	}
	return "\033[38;2;79;79;79m" + addr + "\033[0m : " + highlight(rest, syntax)
}

func highlight(code, syntax string) string {
	lexer := lexerFor(syntax)
	if lexer == nil {
		return code
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, listingStyle(), iterator); err != nil {
		return code
	}
	// code is a single line; lexers with EnsureNL append one.
	return strings.ReplaceAll(buf.String(), "\n", "")
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}

// Strip removes ANSI SGR sequences.
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
