package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarchlab/jpegsim/timing/latency"
	"github.com/sarchlab/jpegsim/timing/stage"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect configuration files.",
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())

	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	var timing bool

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default configuration file.",
		Long: "Write a default stage configuration (.json or .toml) or, with " +
			"--timing, a default timing configuration (.json).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			var err error
			if timing {
				err = latency.DefaultTimingConfig().SaveConfig(path)
			} else {
				err = stage.DefaultConfig().SaveConfig(path)
			}

			if err != nil {
				return err
			}

			slog.Info("jpegsim: config written", "path", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return nil
		},
	}

	cmd.Flags().BoolVar(&timing, "timing", false, "Write a timing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var timing bool

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Load, validate and print a configuration file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var config interface{ Validate() error }

			if timing {
				c, err := latency.LoadConfig(args[0])
				if err != nil {
					return err
				}
				config = c
			} else {
				c, err := stage.LoadConfig(args[0])
				if err != nil {
					return err
				}
				config = c
			}

			if err := config.Validate(); err != nil {
				return err
			}

			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return nil
		},
	}

	cmd.Flags().BoolVar(&timing, "timing", false, "Read a timing configuration")

	return cmd
}
