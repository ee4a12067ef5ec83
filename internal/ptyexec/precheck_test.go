package ptyexec

import (
	"context"
	"errors"
	"testing"
)

type fakeRunner struct {
	stderr string
	err    error
}

func (f fakeRunner) Run(context.Context, []string) (string, string, error) {
	return "", f.stderr, f.err
}

func TestPrecheckOK(t *testing.T) {
	got := precheckWith(context.Background(), fakeRunner{}, "docker", "clab-lab1-c1")
	if got != StatusOK {
		t.Fatalf("got %v, want StatusOK", got)
	}
}

func TestPrecheckContainerNotFound(t *testing.T) {
	got := precheckWith(context.Background(), fakeRunner{stderr: "Error: No such container: clab-lab1-c1", err: errors.New("exit 1")}, "docker", "clab-lab1-c1")
	if got != StatusContainerNotFound {
		t.Fatalf("got %v, want StatusContainerNotFound", got)
	}
}

func TestPrecheckNoSuchObjectIsContainerNotFound(t *testing.T) {
	got := precheckWith(context.Background(), fakeRunner{stderr: "Error: No such object: clab-lab1-c1", err: errors.New("exit 1")}, "docker", "clab-lab1-c1")
	if got != StatusContainerNotFound {
		t.Fatalf("got %v, want StatusContainerNotFound", got)
	}
}

func TestPrecheckPermissionDenied(t *testing.T) {
	got := precheckWith(context.Background(), fakeRunner{stderr: "permission denied while trying to connect", err: errors.New("exit 1")}, "docker", "clab-lab1-c1")
	if got != StatusDockerPermissionDenied {
		t.Fatalf("got %v, want StatusDockerPermissionDenied", got)
	}
}

func TestPrecheckFallsBackToInspectFailed(t *testing.T) {
	got := precheckWith(context.Background(), fakeRunner{stderr: "something unexpected", err: errors.New("exit 1")}, "docker", "clab-lab1-c1")
	if got != StatusDockerInspectFailed {
		t.Fatalf("got %v, want StatusDockerInspectFailed", got)
	}
}
