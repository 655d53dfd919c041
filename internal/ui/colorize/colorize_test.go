package colorize

import (
	"strings"
	"testing"
)

const listing = "00401000 : push rbp\n00401001 : mov rbp, rsp\n00401004 : ret "

func TestListingDisabled(t *testing.T) {
	t.Setenv("LEAKER_NO_COLOR", "1")
	if got := Listing(listing, "intel"); got != listing {
		t.Errorf("Listing with colors disabled = %q", got)
	}
}

func TestListingKeepsText(t *testing.T) {
	t.Setenv("LEAKER_NO_COLOR", "")
	for _, syntax := range []string{"default", "intel", "att"} {
		t.Run(syntax, func(t *testing.T) {
			got := Listing(listing, syntax)
			if !strings.Contains(got, "\x1b[") {
				t.Errorf("no escape sequences in %q", got)
			}
			if plain := Strip(got); plain != listing {
				t.Errorf("Strip(Listing) = %q, want %q", plain, listing)
			}
		})
	}
}

func TestLineWithoutAddress(t *testing.T) {
	t.Setenv("LEAKER_NO_COLOR", "")
	got := Strip(Line("nop", "intel"))
	if got != "nop" {
		t.Errorf("Line(nop) = %q", got)
	}
}

func TestIsHex(t *testing.T) {
	tests := map[string]bool{
		"00401000": true,
		"DEADbeef": true,
		"":         false,
		"0x10":     false,
		"push":     false,
	}
	for in, want := range tests {
		if got := isHex(in); got != want {
			t.Errorf("isHex(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStrip(t *testing.T) {
	if got := Strip("\x1b[38;2;1;2;3mmov\x1b[0m eax"); got != "mov eax" {
		t.Errorf("Strip = %q", got)
	}
}
