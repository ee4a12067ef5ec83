package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ae3gis-labd/internal/compiler"
	"ae3gis-labd/internal/config"
	"ae3gis-labd/internal/descriptor"
	"ae3gis-labd/internal/topology"
)

func loadTopology(path string) (topology.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return topology.Topology{}, fmt.Errorf("read topology file: %w", err)
	}
	var t topology.Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return topology.Topology{}, fmt.Errorf("parse topology file: %w", err)
	}
	return t, nil
}

// savedTopologyPath is where compile persists the topology it compiled, so
// later CLI invocations (deploy, destroy, inspect) can find it by id alone
// without the caller re-supplying the original file.
func savedTopologyPath(workdir, topologyID string) string {
	return filepath.Join(workdir, topologyID+".topology.json")
}

func saveTopology(workdir, topologyID string, t topology.Topology) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal topology: %w", err)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	return os.WriteFile(savedTopologyPath(workdir, topologyID), data, 0o644)
}

func loadSavedTopology(workdir, topologyID string) (topology.Topology, error) {
	data, err := os.ReadFile(savedTopologyPath(workdir, topologyID))
	if err != nil {
		return topology.Topology{}, fmt.Errorf("read saved topology: %w", err)
	}
	var t topology.Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return topology.Topology{}, fmt.Errorf("parse saved topology: %w", err)
	}
	return t, nil
}

func compileCmd(cfg *config.Config) *cobra.Command {
	var topologyID string

	cmd := &cobra.Command{
		Use:   "compile <topology.json>",
		Short: "Compile a topology into a lab descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTopology(args[0])
			if err != nil {
				return err
			}
			if topologyID == "" {
				topologyID = uuid.New().String()
			}

			d, diag := compiler.Compile(t, topologyID)
			for _, skip := range diag.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %s %q: %s\n", skip.Kind, skip.ID, skip.Message)
			}

			path, err := descriptor.Write(cfg.Workdir, topologyID, d)
			if err != nil {
				return fmt.Errorf("write descriptor: %w", err)
			}
			if err := saveTopology(cfg.Workdir, topologyID, t); err != nil {
				return fmt.Errorf("persist topology: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "topology-id: %s\ndescriptor: %s\n", topologyID, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&topologyID, "id", "", "stable topology id (generated if omitted)")
	return cmd
}
