package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults, the config file and environment
overrides are applied. Secrets are redacted.

Configuration is read from ~/.vpgen/config.yaml unless --config is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			// Redact secrets before serialization to prevent leakage
			redacted := *a.cfg
			redacted.Graph.Surreal.Password = a.cfg.Graph.Surreal.RedactedPassword()
			if redacted.Results.PostgresDSN != "" {
				redacted.Results.PostgresDSN = "(set)"
			}

			if a.jsonOut {
				return writeJSON(cmd, redacted)
			}
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
