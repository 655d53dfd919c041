package styles

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := Render("# Builtins\n\n`dump(address, count, type)`\n\nRenders a hex dump.\n", 80)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Builtins", "dump(address", "Renders"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdownStyle(t *testing.T) {
	s := Markdown()
	if s.Code.Color == nil || *s.Code.Color == "" {
		t.Error("inline code has no color")
	}
	if s.H2.Bold == nil || !*s.H2.Bold || s.H2.Prefix != "" {
		t.Error("signature headings are not bold or carry a prefix")
	}
}
