package seeder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"ae3gis-labd/internal/compiler"
	"ae3gis-labd/internal/labapi"
	"ae3gis-labd/internal/topology"
)

// fakeDocker implements client.APIClient by embedding it (panicking on any
// unimplemented method) and overriding only what Seed exercises.
type fakeDocker struct {
	client.APIClient

	createErr error
	startErr  error
	waitErr   error
	exitCode  int64
	logs      string

	createdScript string
	createdMounts []string
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, hostCfg *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	if len(cfg.Cmd) > 0 {
		f.createdScript = cfg.Cmd[0]
	}
	for _, m := range hostCfg.Mounts {
		f.createdMounts = append(f.createdMounts, m.Source+"->"+m.Target)
	}
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "ephemeral1"}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return f.startErr
}

func (f *fakeDocker) ContainerWait(context.Context, string, container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	if f.waitErr != nil {
		errCh <- f.waitErr
	} else {
		statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerRemove(context.Context, string, container.RemoveOptions) error {
	return nil
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func TestSeedSkipsWhenSentinelAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	s := New(&fakeDocker{}, dir)

	sentinel := s.sentinelPath("t1", "c1", "/etc/config")
	if err := os.MkdirAll(filepath.Dir(sentinel), 0o755); err != nil {
		t.Fatalf("mkdir sentinel dir: %v", err)
	}
	if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	docker := &fakeDocker{}
	s.Docker = docker
	if err := s.Seed(context.Background(), "t1", "c1", "alpine:latest", "/etc/config"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if docker.createdScript != "" {
		t.Fatal("expected no container to be created when already seeded")
	}
}

func TestSeedSuccessCreatesHostDirAndSentinel(t *testing.T) {
	dir := t.TempDir()
	docker := &fakeDocker{exitCode: 0}
	s := New(docker, dir)

	if err := s.Seed(context.Background(), "t1", "c1", "alpine:latest", "/etc/config"); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	hostDir := s.HostDir("t1", "c1", "/etc/config")
	if _, err := os.Stat(hostDir); err != nil {
		t.Fatalf("expected host directory to exist: %v", err)
	}
	if _, err := os.Stat(s.sentinelPath("t1", "c1", "/etc/config")); err != nil {
		t.Fatalf("expected sentinel to exist: %v", err)
	}

	if len(docker.createdMounts) != 1 || docker.createdMounts[0] != hostDir+"->/ae3gis-seed" {
		t.Fatalf("unexpected mounts: %v", docker.createdMounts)
	}
	if !strings.Contains(docker.createdScript, "cp -a") {
		t.Fatalf("expected cp invocation in script, got %q", docker.createdScript)
	}
}

func TestSeedAbsentSourceWritesSentinelWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	docker := &fakeDocker{exitCode: absentExitCode}
	s := New(docker, dir)

	if err := s.Seed(context.Background(), "t1", "c1", "alpine:latest", "/etc/missing"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := os.Stat(s.sentinelPath("t1", "c1", "/etc/missing")); err != nil {
		t.Fatalf("expected sentinel written for absent-source case: %v", err)
	}
}

func TestSeedScriptExitFailureReturnsEngineErrorWithLogs(t *testing.T) {
	dir := t.TempDir()
	docker := &fakeDocker{exitCode: 1, logs: "cp: permission denied"}
	s := New(docker, dir)

	err := s.Seed(context.Background(), "t1", "c1", "alpine:latest", "/etc/config")
	if err == nil {
		t.Fatal("expected error on non-zero, non-absent exit code")
	}
	var engErr *labapi.EngineError
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if !strings.Contains(engErr.Stderr, "permission denied") {
		t.Fatalf("expected captured logs in error, got %q", engErr.Stderr)
	}
	if _, statErr := os.Stat(s.sentinelPath("t1", "c1", "/etc/config")); statErr == nil {
		t.Fatal("expected no sentinel written on failure")
	}
}

func TestSeedTopologySeedsEveryPersistPath(t *testing.T) {
	dir := t.TempDir()
	docker := &fakeDocker{exitCode: 0}
	s := New(docker, dir)

	tpl := topology.Topology{
		Sites: []topology.Site{
			{Subnets: []topology.Subnet{
				{Containers: []topology.Container{
					{ID: "fs1", Persist: []string{"/var/www", "/etc/data"}},
					{ID: "ws1"},
				}},
			}},
		},
	}
	d := compiler.Descriptor{Nodes: map[string]compiler.Node{
		"fs1": {Image: "nginx:latest"},
		"ws1": {Image: "alpine:latest"},
	}}

	if err := s.SeedTopology(context.Background(), "t1", tpl, d); err != nil {
		t.Fatalf("SeedTopology: %v", err)
	}

	for _, path := range []string{"/var/www", "/etc/data"} {
		if _, err := os.Stat(s.sentinelPath("t1", "fs1", path)); err != nil {
			t.Fatalf("expected sentinel for %s: %v", path, err)
		}
	}
}

func asEngineError(err error, target **labapi.EngineError) bool {
	ee, ok := err.(*labapi.EngineError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
