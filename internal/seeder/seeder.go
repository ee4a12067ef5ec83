// Package seeder seeds a container's persistent bind-mount directories with
// the files its image ships by default, before the lab is ever deployed, so
// the first boot of a container with a persistence path doesn't start from
// an empty directory.
package seeder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"ae3gis-labd/internal/compiler"
	"ae3gis-labd/internal/labapi"
	"ae3gis-labd/internal/topology"
)

// absentExitCode is the sentinel exit status the seed script uses to report
// that the in-container source path doesn't exist at all.
const absentExitCode = 42

// Seeder runs ephemeral, ambient containers to copy an image's built-in
// contents at a persistence path out to a host bind directory, exactly
// once per (topology, container, path).
type Seeder struct {
	Docker  client.APIClient
	Workdir string
}

// New constructs a Seeder.
func New(docker client.APIClient, workdir string) *Seeder {
	return &Seeder{Docker: docker, Workdir: workdir}
}

// SeedTopology seeds every configured persistence path of every container in
// t, using d's compiled image per container. It returns the first error
// encountered; callers that want best-effort seeding should still call this
// before Deploy, since Deploy is what actually needs the directories to
// exist.
func (s *Seeder) SeedTopology(ctx context.Context, topologyID string, t topology.Topology, d compiler.Descriptor) error {
	for _, site := range t.Sites {
		for _, subnet := range site.Subnets {
			for _, c := range subnet.Containers {
				if len(c.Persist) == 0 {
					continue
				}
				node, ok := d.Nodes[c.ID]
				if !ok {
					continue
				}
				for _, path := range c.Persist {
					if err := s.Seed(ctx, topologyID, c.ID, node.Image, path); err != nil {
						return fmt.Errorf("seeder: seed %s:%s: %w", c.ID, path, err)
					}
				}
			}
		}
	}
	return nil
}

// HostDir returns the host-side directory a persistence path is bind-mounted
// from, derived deterministically from the topology, container, and
// in-container path.
func (s *Seeder) HostDir(topologyID, containerID, containerPath string) string {
	return filepath.Join(s.Workdir, "seed-data", topologyID, containerID, url.PathEscape(containerPath))
}

func (s *Seeder) sentinelPath(topologyID, containerID, containerPath string) string {
	return filepath.Join(s.Workdir, ".ae3gis-seed", topologyID, containerID, url.PathEscape(containerPath)+".seeded")
}

// Seed ensures a single (topology, container, path) has been seeded. It's
// idempotent: a prior successful (or absent-source) seed is recorded by a
// sentinel file and short-circuits every subsequent call.
func (s *Seeder) Seed(ctx context.Context, topologyID, containerID, image, containerPath string) error {
	sentinel := s.sentinelPath(topologyID, containerID, containerPath)
	if _, err := os.Stat(sentinel); err == nil {
		return nil
	}

	hostDir := s.HostDir(topologyID, containerID, containerPath)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return fmt.Errorf("create host seed directory: %w", err)
	}

	script := fmt.Sprintf(
		`if [ -d %[1]q ]; then cp -a %[1]q/. /ae3gis-seed/; elif [ -f %[1]q ]; then cp -a %[1]q /ae3gis-seed/; else exit %[2]d; fi`,
		containerPath, absentExitCode,
	)

	cfg := &container.Config{
		Image:      image,
		Entrypoint: []string{"sh", "-c"},
		Cmd:        []string{script},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: hostDir, Target: "/ae3gis-seed"},
		},
		AutoRemove: false,
	}

	resp, err := s.Docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return &labapi.EngineError{Op: "seeder: create ephemeral container", Stderr: err.Error()}
	}
	defer func() {
		_ = s.Docker.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := s.Docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &labapi.EngineError{Op: "seeder: start ephemeral container", Stderr: err.Error()}
	}

	statusCh, errCh := s.Docker.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil && !errdefs.IsNotFound(err) {
			return &labapi.EngineError{Op: "seeder: wait for ephemeral container", Stderr: err.Error()}
		}
	case result := <-statusCh:
		exitCode = result.StatusCode
	}

	if exitCode == absentExitCode {
		slog.Warn("persistence source path absent in image, leaving seed directory empty",
			"topology_id", topologyID, "container_id", containerID, "path", containerPath)
		return s.writeSentinel(sentinel)
	}
	if exitCode != 0 {
		logs := s.readLogs(ctx, resp.ID)
		return &labapi.EngineError{Op: fmt.Sprintf("seeder: seed script exited %d", exitCode), Stderr: logs}
	}

	return s.writeSentinel(sentinel)
}

func (s *Seeder) readLogs(ctx context.Context, containerID string) string {
	rc, err := s.Docker.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return ""
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil && !errors.Is(err, io.EOF) {
		return stdout.String() + stderr.String()
	}
	if stderr.Len() > 0 {
		return stderr.String()
	}
	return stdout.String()
}

func (s *Seeder) writeSentinel(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sentinel directory: %w", err)
	}
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}
	return nil
}
