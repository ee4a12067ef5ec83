// Package ptyexec implements the duplex PTY-backed exec session between a
// peer and a single container's shell: the hardest concurrency path in the
// system, per spec.
package ptyexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	readChunkSize  = 4096
	terminateGrace = 2 * time.Second

	initialRows = 24
	initialCols = 80
)

// Peer is the transport-agnostic duplex endpoint a Session drives: Recv
// blocks for the next inbound message (resize control frame or raw input),
// returning an error once the peer disconnects.
type Peer interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

type resizeFrame struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// Session drives one PTY exec session against a single container.
type Session struct {
	ContainerEngineBinary string
	Reactor               Reactor
}

// NewSession constructs a Session backed by the platform-appropriate
// Reactor (epoll on Linux, goroutine-per-fd elsewhere).
func NewSession(containerEngineBinary string) (*Session, error) {
	reactor, err := NewReactor()
	if err != nil {
		return nil, fmt.Errorf("ptyexec: create reactor: %w", err)
	}
	return &Session{ContainerEngineBinary: containerEngineBinary, Reactor: reactor}, nil
}

// Run allocates a pseudo-terminal, launches
// `<container-engine> exec -it <dockerName> /bin/sh` attached to it, and
// relays bytes between the PTY and peer until either side ends the
// session. It returns once teardown has completed.
func (s *Session) Run(ctx context.Context, dockerName string, peer Peer) error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return fmt.Errorf("ptyexec: open pty: %w", err)
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: initialRows, Cols: initialCols}); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return fmt.Errorf("ptyexec: set initial window size: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.ContainerEngineBinary, "exec", "-it", dockerName, "/bin/sh")
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return fmt.Errorf("ptyexec: start exec: %w", err)
	}
	_ = tty.Close()

	ptyDone := make(chan struct{})
	peerDone := make(chan struct{})

	remove := s.Reactor.AddReader(ptmx.Fd(), func() bool {
		buf := make([]byte, readChunkSize)
		n, readErr := ptmx.Read(buf)
		if n > 0 {
			_ = peer.Send(buf[:n])
		}
		if readErr != nil {
			close(ptyDone)
			return false
		}
		return true
	})

	go func() {
		defer close(peerDone)
		for {
			msg, recvErr := peer.Recv()
			if recvErr != nil {
				return
			}
			if ws, ok := parseResize(msg); ok {
				_ = pty.Setsize(ptmx, ws)
				continue
			}
			if _, writeErr := ptmx.Write(msg); writeErr != nil {
				return
			}
		}
	}()

	select {
	case <-ptyDone:
	case <-peerDone:
	case <-ctx.Done():
	}

	// Reactor deregistration happens before the master end closes, so the
	// reactor never observes a read error on an fd it's about to stop
	// tracking anyway.
	remove()
	_ = ptmx.Close()

	terminateProcess(cmd)

	_ = peer.Send([]byte("\r\n[session ended]\r\n"))
	return peer.Close()
}

func parseResize(msg []byte) (*pty.Winsize, bool) {
	var frame resizeFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != "resize" {
		return nil, false
	}
	cols, rows := frame.Cols, frame.Rows
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}, true
}

// terminateProcess signals the child to exit and waits up to
// terminateGrace before force-killing it.
func terminateProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(terminateGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}
