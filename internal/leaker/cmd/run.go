package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"leaker/internal/host/starbind"
	lklog "leaker/internal/leaker/log"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.star>",
		Short: "Run a Starlark script against the leaker builtins",
		Long: `Run executes a Starlark script with every leaker builtin predeclared.
If the script defines main(), it is called after the top level and its
result, unless None, is printed.`,
		Example: `
# Run a script
leaker run inspect.star
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			defer l.Close()

			out := cmd.OutOrStdout()
			env := starbind.New(l, out)
			stop := context.AfterFunc(cmd.Context(), env.Cancel)
			defer stop()

			slog.Debug("run: executing script", "path", args[0])
			v, err := env.Execute(args[0], nil)
			if err != nil {
				return err
			}
			if v != nil && v != starlark.None {
				fmt.Fprintln(out, v.String())
			}
			return nil
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive Starlark prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			defer l.Close()

			env := starbind.New(l, cmd.OutOrStdout())
			stop := context.AfterFunc(cmd.Context(), env.Cancel)
			defer stop()
			defer lklog.RecoverPanic("repl", nil)

			return env.REPL(historyPath())
		},
	}
}

// historyPath is the REPL history file, or "" when there is no cache
// directory.
func historyPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "leaker")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("repl: no history directory", "dir", dir, "err", err)
		return ""
	}
	return filepath.Join(dir, "history")
}
