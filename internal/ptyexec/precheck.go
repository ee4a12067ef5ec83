package ptyexec

import (
	"context"
	"os/exec"
	"strings"
)

// Status is the outcome of a pre-check against a container before opening
// an exec session, letting the caller diagnose a failure without paying
// the cost of opening the PTY stream.
type Status string

const (
	StatusOK                     Status = "ok"
	StatusContainerNotFound      Status = "container_not_found"
	StatusDockerPermissionDenied Status = "docker_permission_denied"
	StatusDockerInspectFailed    Status = "docker_inspect_failed"
)

// commandRunner abstracts process execution for tests; mirrors the
// labdriver package's interface so both can be faked the same way.
type commandRunner interface {
	Run(ctx context.Context, argv []string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, argv []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	return string(out), string(out), err
}

// Precheck runs `<container-engine> inspect <docker-name>` and classifies
// the result without opening a session.
func Precheck(ctx context.Context, containerEngineBinary, dockerName string) Status {
	return precheckWith(ctx, execRunner{}, containerEngineBinary, dockerName)
}

func precheckWith(ctx context.Context, run commandRunner, containerEngineBinary, dockerName string) Status {
	_, stderr, err := run.Run(ctx, []string{containerEngineBinary, "inspect", dockerName})
	if err == nil {
		return StatusOK
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "no such object"), strings.Contains(lower, "no such container"):
		return StatusContainerNotFound
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "password is required"):
		return StatusDockerPermissionDenied
	default:
		return StatusDockerInspectFailed
	}
}
