// Package cmd implements the leaker command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"leaker/internal/config"
	"leaker/internal/host"
	"leaker/internal/leaker/log"
	"leaker/internal/symbols"
	"leaker/internal/ui/colorize"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leaker",
		Short: "Inspect and disassemble the memory of the running process",
		Long: `Leaker reads, writes and disassembles memory of its own process.
Addresses are given as 0x hex, decimal, or a symbol of the leaker executable,
optionally followed by +offset. Scripts drive the same operations through
Starlark builtins.`,
		Example: `
# Disassemble eight instructions of a function
leaker disasm -n 8 main.main

# Dump 32 dwords
leaker dump -t uint32_t -n 32 0x7ffd2a3c1000

# Run a script
leaker run patch.star
  `,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			log.Setup(debug)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (default $XDG_CONFIG_HOME/leaker/config.yml)")
	pf.Int("bits", 0, "Decode width and address padding: 16, 32 or 64")
	pf.String("syntax", "", "Listing syntax: default, intel or att")
	pf.Int("width", 0, "Bytes per dump row")
	pf.BoolP("debug", "d", false, "Debug")

	root.AddCommand(
		newRunCmd(),
		newReplCmd(),
		newDisasmCmd(),
		newDumpCmd(),
		newReadCmd(),
		newRegionCmd(),
		newRegionsCmd(),
		newPebCmd(),
		newTebCmd(),
		newErrmsgCmd(),
		newConfigCmd(),
		newViewCmd(),
		newDocsCmd(),
		newSchemaCmd(),
	)
	return root
}

// configPath returns --config or the per-user default location.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.Path("")
}

// loadConfig reads the config file and applies command line overrides.
// An unreadable file falls back to defaults; an invalid override fails.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, err := configPath(cmd); err != nil {
		slog.Warn("config: no config directory, using defaults", "err", err)
	} else if loaded, err := config.Load(path); err != nil {
		slog.Warn("config: using defaults", "path", path, "err", err)
	} else {
		cfg = loaded
	}

	overrides := []struct{ flag, key string }{
		{"bits", "bits"},
		{"syntax", "syntax"},
		{"width", "row-width"},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		if err := cfg.Set(o.key, cmd.Flags().Lookup(o.flag).Value.String()); err != nil {
			return nil, fmt.Errorf("--%s: %w", o.flag, err)
		}
	}
	return cfg, nil
}

// newLeaker builds the host facade for a command. Symbols are optional:
// without them addresses must be numeric.
func newLeaker(cmd *cobra.Command) (*host.Leaker, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	syms, err := symbols.Self()
	if err != nil {
		slog.Debug("symbols unavailable", "err", err)
		syms = nil
	}
	l, err := host.New(cfg, syms)
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}

// resolve parses an address argument. Failures leave the detail in the
// last-error slot as well.
func resolve(l *host.Leaker, arg string) (uint64, error) {
	return l.Resolve(arg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// useColor reports whether listings written to w are highlighted.
func useColor(cfg *config.Config, w io.Writer) bool {
	return cfg.Color && !colorize.Disabled() && isTerminal(w)
}

// parseUint accepts 0x hex, 0 octal or decimal.
func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

func Execute() {
	root := newRootCmd()

	// fang renders help and errors for terminals; plain cobra keeps piped
	// output free of escape sequences.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
