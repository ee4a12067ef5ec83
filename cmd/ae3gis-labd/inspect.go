package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ae3gis-labd/internal/config"
)

func inspectCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <topology-id>",
		Short: "Show live container status for a deployed topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topologyID := args[0]
			t, err := loadSavedTopology(cfg.Workdir, topologyID)
			if err != nil {
				return err
			}

			driver := newDriver(cfg)
			containers := driver.Inspect(cmd.Context(), t.DeploymentName())

			out, err := json.MarshalIndent(containers, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal inspection result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
