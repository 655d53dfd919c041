package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leaker/internal/host"
	"leaker/internal/ui/colorize"
	"leaker/internal/ui/viewer"
)

// viewPages renders the listing, dump and region pages for addr. A page
// whose operation fails shows the partial output followed by the error.
func viewPages(l *host.Leaker, addr uint64, n int, color bool) []viewer.Page {
	text, err := l.Disassemble(addr, n)
	if color {
		text = colorize.Listing(text, l.Syntax())
	}
	listing := withError(text, err)

	text, err = l.Dump(addr, n*8, "uint8_t")
	dump := withError(text, err)

	var sb strings.Builder
	if info, err := l.Region(addr); err != nil {
		sb.WriteString(err.Error())
	} else {
		writeRegion(&sb, info, l.Bits())
	}

	return []viewer.Page{
		{Title: "disasm", Content: listing},
		{Title: "dump", Content: dump},
		{Title: "region", Content: sb.String()},
	}
}

func withError(text string, err error) string {
	if err == nil {
		return text
	}
	return strings.TrimSuffix(text, "\n") + "\n\n" + err.Error()
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <address>",
		Short: "Browse the listing, dump and region of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			l, cfg, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr, err := resolve(l, args[0])
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("view needs a terminal; use disasm or dump")
			}
			return viewer.Run(cmd.Context(), addr, viewPages(l, addr, n, cfg.Color && !colorize.Disabled()))
		},
	}
	cmd.Flags().IntP("count", "n", 64, "Number of instructions")
	return cmd
}
