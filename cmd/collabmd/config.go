package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/collabmd/collabmd/internal/config"
)

func configCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration collabmd would start with, as JSON.

The Redis password and the S3 secret key are redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.Redacted())
		},
	}
}
