// Package styles renders the builtin reference as terminal markdown.
package styles

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/x/exp/charmtone"
)

func boolPtr(b bool) *bool       { return &b }
func stringPtr(s string) *string { return &s }
func uintPtr(u uint) *uint       { return &u }

// palette names the few colors the reference uses.
var palette = struct {
	text, muted, title, titleBg, signature, accent string
}{
	text:      charmtone.Smoke.Hex(),
	muted:     charmtone.Squid.Hex(),
	title:     charmtone.Zest.Hex(),
	titleBg:   charmtone.Charple.Hex(),
	signature: charmtone.Malibu.Hex(),
	accent:    charmtone.Guac.Hex(),
}

// Renderer returns a glamour renderer wrapping prose at width.
func Renderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStyles(Markdown()),
		glamour.WithWordWrap(width),
	)
}

// Render formats md for a terminal of the given width.
func Render(md string, width int) (string, error) {
	r, err := Renderer(width)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// Markdown is the style for `leaker docs`. Each builtin is an H2 whose
// text is its signature in inline code, followed by one paragraph.
func Markdown() ansi.StyleConfig {
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr(palette.text)},
			Margin:         uintPtr(1),
		},
		Paragraph: ansi.StyleBlock{
			Indent: uintPtr(2),
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix:          " ",
				Suffix:          " ",
				BlockSuffix:     "\n",
				Color:           stringPtr(palette.title),
				BackgroundColor: stringPtr(palette.titleBg),
				Bold:            boolPtr(true),
			},
		},
		// Signatures carry no "##" marker; the color sets them apart.
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(palette.signature),
				Bold:  boolPtr(true),
			},
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr(palette.signature)},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: stringPtr(palette.muted)},
				Margin:         uintPtr(2),
			},
		},
		Emph:   ansi.StylePrimitive{Italic: boolPtr(true)},
		Strong: ansi.StylePrimitive{Bold: boolPtr(true), Color: stringPtr(palette.accent)},
		List:   ansi.StyleList{LevelIndent: 2},
		Item:   ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr(palette.muted),
			Format: "\n--------\n",
		},
	}
}
