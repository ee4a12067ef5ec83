package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ae3gis-labd/internal/config"
)

func destroyCmd(cfg *config.Config) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "destroy <topology-id>",
		Short: "Tear down a deployed topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topologyID := args[0]
			driver := newDriver(cfg)

			stdout, err := driver.Destroy(cmd.Context(), topologyID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stdout)

			if purge {
				t, err := loadSavedTopology(cfg.Workdir, topologyID)
				if err != nil {
					return err
				}
				if err := driver.Cleanup(topologyID, t.DeploymentName()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also remove the descriptor and working directory")
	return cmd
}
