// Package descriptor marshals a compiled Descriptor to the on-disk
// container-lab YAML file the lab engine reads, one file per topology id at
// <workdir>/<topology-id>.clab.yml.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ae3gis-labd/internal/compiler"
)

type wireNode struct {
	Kind  string   `yaml:"kind"`
	Image string   `yaml:"image"`
	Exec  []string `yaml:"exec,omitempty"`
}

type wireLink struct {
	Endpoints [2]string `yaml:"endpoints"`
}

type wireTopology struct {
	Nodes yaml.Node  `yaml:"nodes"`
	Links []wireLink `yaml:"links"`
}

type wireDescriptor struct {
	Name     string       `yaml:"name"`
	Topology wireTopology `yaml:"topology"`
}

// Write marshals d to <workdir>/<topologyID>.clab.yml and returns the path
// written. Nodes are emitted in d.NodeOrder rather than map-iteration order:
// a plain map[string]wireNode field would make yaml.v3 sort keys
// alphabetically on its own, which happens to match NodeOrder today but
// isn't a guarantee the library makes, so the node map is built as an
// explicit yaml.Node mapping instead.
func Write(workdir string, topologyID string, d compiler.Descriptor) (string, error) {
	nodesNode := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, id := range d.NodeOrder {
		n := d.Nodes[id]

		keyNode := &yaml.Node{}
		keyNode.SetString(id)

		valNode := &yaml.Node{}
		if err := valNode.Encode(wireNode{Kind: n.Kind, Image: n.Image, Exec: n.Exec}); err != nil {
			return "", fmt.Errorf("descriptor: encode node %q: %w", id, err)
		}

		nodesNode.Content = append(nodesNode.Content, keyNode, valNode)
	}

	links := make([]wireLink, 0, len(d.Links))
	for _, l := range d.Links {
		links = append(links, wireLink{Endpoints: l.Endpoints()})
	}

	out := wireDescriptor{
		Name: d.Name,
		Topology: wireTopology{
			Nodes: nodesNode,
			Links: links,
		},
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("descriptor: marshal: %w", err)
	}

	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return "", fmt.Errorf("descriptor: create workdir: %w", err)
	}

	path := filepath.Join(workdir, topologyID+".clab.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("descriptor: write %s: %w", path, err)
	}
	return path, nil
}

// Path returns the descriptor path for a topology id without writing
// anything, for callers (the Driver, Cleanup) that only need to locate an
// already-written file.
func Path(workdir string, topologyID string) string {
	return filepath.Join(workdir, topologyID+".clab.yml")
}
