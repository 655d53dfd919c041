package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ListingDark is registered with chroma on package load.
var ListingDark = styles.Register(chroma.MustNewStyle("listing-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	// NASM tokenizes mnemonics as functions, GAS as keywords.
	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#FFFFFF",
	chroma.NameFunction:  "#FFFFFF",
	chroma.Name:          "#7C9C9D", // registers
	chroma.NameBuiltin:   "#7C9C9D",
	chroma.NameVariable:  "#7C9C9D",
	chroma.NameLabel:     "#FFD700",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",
	chroma.LiteralNumberFloat:   "#FF5F87",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",
	chroma.String:      "#EACD53",
}))
