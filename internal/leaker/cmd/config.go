package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leaker/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persisted settings",
		Long: fmt.Sprintf(`Config reads and writes the settings file. Keys: %s.
Command line overrides such as --bits do not affect the file.`, strings.Join(config.Keys, ", ")),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			keys := config.Keys
			if len(args) == 1 {
				keys = args
			}
			out := cmd.OutOrStdout()
			for _, key := range keys {
				v, err := cfg.Get(key)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					fmt.Fprintln(out, v)
				} else {
					fmt.Fprintf(out, "%s: %s\n", key, v)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save the file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			return config.Save(path, cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
