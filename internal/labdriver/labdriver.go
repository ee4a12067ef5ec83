// Package labdriver wraps the external lab-engine and container-engine
// binaries that actually stand up and tear down a compiled lab: deploy,
// destroy, inspect, and cleanup.
package labdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ae3gis-labd/internal/descriptor"
	"ae3gis-labd/internal/labapi"
	"ae3gis-labd/internal/mgmtnet"
)

const maxDeployAttempts = 4

// commandRunner abstracts process execution so retry/self-heal logic can be
// tested without invoking real binaries. Grounded on the teacher's
// package-level exec-function-variable pattern
// (internal/adapter/corrosion/process/runtime_darwin.go's corrosionLookPath
// var), generalized here to an interface since the Driver's retry loop
// needs to inspect stdout/stderr/err together rather than a single call.
type commandRunner interface {
	Run(ctx context.Context, argv []string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, argv []string) (string, string, error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("labdriver: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Driver wraps the containerlab-shaped lab engine and the container engine,
// prefixing every invocation with an optional privilege-elevation wrapper.
type Driver struct {
	LabEngineBinary       string
	ContainerEngineBinary string
	PrivilegeWrapper      []string
	Workdir               string

	run commandRunner
}

// New constructs a Driver. PrivilegeWrapper (e.g. []string{"sudo"}) is
// prepended to every external invocation; it may be nil.
func New(labEngineBinary, containerEngineBinary, workdir string, privilegeWrapper []string) *Driver {
	return &Driver{
		LabEngineBinary:       labEngineBinary,
		ContainerEngineBinary: containerEngineBinary,
		PrivilegeWrapper:      privilegeWrapper,
		Workdir:               workdir,
		run:                   execRunner{},
	}
}

func (d *Driver) argv(binary string, args ...string) []string {
	out := make([]string, 0, len(d.PrivilegeWrapper)+1+len(args))
	out = append(out, d.PrivilegeWrapper...)
	out = append(out, binary)
	out = append(out, args...)
	return out
}

// Deploy brings a topology's lab up. The descriptor file must already exist
// at the conventional path. Each attempt recomputes a fresh management
// network plan; on an overlap error it retries (up to maxDeployAttempts
// total), and on a stale-bridge error it removes the offending docker
// network and retries without spending an overlap attempt.
func (d *Driver) Deploy(ctx context.Context, topologyID string) (string, error) {
	descPath := descriptor.Path(d.Workdir, topologyID)
	if _, err := os.Stat(descPath); err != nil {
		return "", fmt.Errorf("labdriver: %w: descriptor missing for %s", labapi.ErrNotFound, topologyID)
	}

	attempt := 0
	for {
		plan, err := mgmtnet.Allocate(topologyID, attempt)
		if err != nil {
			return "", fmt.Errorf("labdriver: allocate management network: %w", err)
		}

		argv := d.argv(d.LabEngineBinary,
			"deploy",
			"-t", descPath,
			"--network", plan.Name,
			"--ipv4-subnet", plan.IPv4.String(),
			"--ipv6-subnet", plan.IPv6.String(),
			"--reconfigure",
		)
		stdout, stderr, runErr := d.run.Run(ctx, argv)
		if runErr == nil {
			return stdout, nil
		}

		if isStaleBridge(stderr) {
			slog.Warn("stale management bridge detected, removing and retrying", "topology_id", topologyID, "network", plan.Name)
			_, _, _ = d.run.Run(ctx, d.argv(d.ContainerEngineBinary, "network", "rm", plan.Name))
			continue
		}

		if isOverlap(stderr) && attempt < maxDeployAttempts-1 {
			attempt++
			slog.Debug("management subnet overlap, retrying with new allocation", "topology_id", topologyID, "attempt", attempt)
			continue
		}

		return "", &labapi.EngineError{Op: "deploy", Stderr: strings.TrimSpace(stderr)}
	}
}

// Destroy tears a topology's lab down.
func (d *Driver) Destroy(ctx context.Context, topologyID string) (string, error) {
	descPath := descriptor.Path(d.Workdir, topologyID)
	if _, err := os.Stat(descPath); err != nil {
		return "", fmt.Errorf("labdriver: %w: descriptor missing for %s", labapi.ErrNotFound, topologyID)
	}

	stdout, stderr, err := d.run.Run(ctx, d.argv(d.LabEngineBinary, "destroy", "-t", descPath))
	if err != nil {
		return "", &labapi.EngineError{Op: "destroy", Stderr: strings.TrimSpace(stderr)}
	}
	return stdout, nil
}

type inspectResult struct {
	Containers []labapi.ContainerStatus `json:"containers"`
}

// Inspect is a best-effort read: any failure (missing binary, non-zero
// exit, unparseable JSON) logs a warning and returns a nil (empty) list;
// it never reports an error to the caller.
func (d *Driver) Inspect(ctx context.Context, topologyName string) []labapi.ContainerStatus {
	stdout, stderr, err := d.run.Run(ctx, d.argv(d.LabEngineBinary, "inspect", "--name", topologyName, "--format", "json"))
	if err != nil {
		slog.Warn("inspect failed", "topology_name", topologyName, "stderr", strings.TrimSpace(stderr), "err", err)
		return nil
	}

	var result inspectResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		slog.Warn("inspect returned unparseable JSON", "topology_name", topologyName, "err", err)
		return nil
	}
	return result.Containers
}

// Cleanup removes the descriptor file and the engine's working subdirectory
// for a topology, ignoring missing-file errors.
func (d *Driver) Cleanup(topologyID, topologyName string) error {
	descPath := descriptor.Path(d.Workdir, topologyID)
	if err := os.Remove(descPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("labdriver: remove descriptor: %w", err)
	}

	clabDir := filepath.Join(d.Workdir, "clab-"+topologyName)
	if err := os.RemoveAll(clabDir); err != nil {
		return fmt.Errorf("labdriver: remove %s: %w", clabDir, err)
	}
	return nil
}

func isOverlap(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "overlap") && strings.Contains(lower, "subnet")
}

func isStaleBridge(stderr string) bool {
	return strings.Contains(stderr, `Failed to lookup link "br-`) && strings.Contains(stderr, "Link not found")
}
