package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/pattern"
)

// buildValidateCmd creates the "validate" command that checks a config
// file without starting the gateway.
func buildValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Load a configuration file, resolve its includes, and compile every
declared command's usage grammar. Exits non-zero on the first error.`,
		Example: `  relay validate --config relay.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml",
		"Path to YAML configuration file")
	return cmd
}

func runValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	cache := pattern.NewCache(nil)
	for _, c := range cfg.Commands {
		if c.Usage == "" {
			continue
		}
		if _, err := cache.Get(c.Usage); err != nil {
			return fmt.Errorf("command %q: invalid usage %q: %w", c.Name, c.Usage, err)
		}
	}

	enabled := 0
	for _, on := range []bool{
		cfg.Channels.Telegram.Enabled,
		cfg.Channels.Discord.Enabled,
		cfg.Channels.Slack.Enabled,
	} {
		if on {
			enabled++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d declared commands, %d channels enabled\n",
		configPath, len(cfg.Commands), enabled)
	return nil
}
