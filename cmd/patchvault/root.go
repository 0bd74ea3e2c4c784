package main

import (
	"github.com/spf13/cobra"

	"patchvault/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "patchvault",
		Short: "Patchvault is a deduplicated archive of game client patches",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				cmd.PrintErrln(warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newIngestCmd(cfg, &jsonOutput),
		newResolveCmd(cfg, &jsonOutput),
		newBuildCmd(cfg),
		newHistoryCmd(cfg, &jsonOutput),
		newPatchesCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
	)

	return cmd
}
