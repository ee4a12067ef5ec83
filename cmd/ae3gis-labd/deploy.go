package main

import (
	"fmt"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"ae3gis-labd/internal/compiler"
	"ae3gis-labd/internal/config"
	"ae3gis-labd/internal/labdriver"
	"ae3gis-labd/internal/seeder"
)

func newDriver(cfg *config.Config) *labdriver.Driver {
	return labdriver.New(cfg.LabEngineBinary, cfg.ContainerEngineBinary, cfg.Workdir, cfg.PrivilegeWrapper)
}

func deployCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <topology-id>",
		Short: "Seed persistence paths and deploy a compiled topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topologyID := args[0]

			t, err := loadSavedTopology(cfg.Workdir, topologyID)
			if err != nil {
				return err
			}
			d, _ := compiler.Compile(t, topologyID)

			docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
			if err != nil {
				return fmt.Errorf("connect to container engine: %w", err)
			}
			defer docker.Close()

			s := seeder.New(docker, cfg.Workdir)
			if err := s.SeedTopology(cmd.Context(), topologyID, t, d); err != nil {
				return fmt.Errorf("seed persistence paths: %w", err)
			}

			driver := newDriver(cfg)
			stdout, err := driver.Deploy(cmd.Context(), topologyID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stdout)
			return nil
		},
	}
	return cmd
}
