package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"leaker/internal/host/starbind"
	"leaker/internal/leaker/styles"
)

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Show the reference of script builtins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			md := starbind.New(l, out).Docs()
			if !isTerminal(out) {
				fmt.Fprint(out, md)
				return nil
			}

			width := 80
			if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
				width = w
			}
			rendered, err := styles.Render(md, width)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}
}
