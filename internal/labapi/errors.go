// Package labapi defines the error taxonomy and narrow collaborator
// interfaces (topology storage, authentication) that the orchestrator core
// expects from the surrounding system. The CRUD persistence layer, the HTTP
// routing surface, and token policy decisions all live outside this module;
// this package is the seam.
package labapi

import (
	"errors"
	"strings"
)

// Sentinel errors for conditions that don't need their own struct.
var (
	// ErrNotFound indicates a topology, container, or student slot is missing.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates no token was supplied, or the token doesn't
	// resolve to any known identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a resolved identity without the scope to access
	// this topology (a token valid for a different topology, or a student
	// token used where an instructor token is required).
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates an operation required the "deployed" state, or a
	// container that isn't running.
	ErrConflict = errors.New("conflict")
	// ErrBadGateway indicates a container has no reachable IP, or an upstream
	// HTTP request inside the reverse proxy failed.
	ErrBadGateway = errors.New("bad gateway")
)

// ValidationError reports an invalid input to a core operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// EngineError wraps a non-zero exit from the lab engine or container engine,
// carrying the captured stderr for diagnostics.
type EngineError struct {
	Op     string
	Stderr string
}

func (e *EngineError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return e.Op + ": engine exited non-zero"
	}
	return e.Op + ": " + msg
}

// ToHTTPStatus maps a core error to the HTTP status code the excluded HTTP
// layer should return. It is a documented hook, not wired to any router here.
func ToHTTPStatus(err error) int {
	if err == nil {
		return 200
	}

	if errors.Is(err, ErrNotFound) {
		return 404
	}
	if errors.Is(err, ErrUnauthorized) {
		return 401
	}
	if errors.Is(err, ErrForbidden) {
		return 403
	}
	if errors.Is(err, ErrConflict) {
		return 409
	}
	if errors.Is(err, ErrBadGateway) {
		return 502
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return 400
	}
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return 500
	}

	// Fallback to string matching for errors not yet converted to typed
	// sentinels (e.g. errors bubbled up from third-party libraries).
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no such"):
		return 404
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid token"):
		return 401
	case strings.Contains(msg, "permission denied"):
		return 403
	default:
		return 500
	}
}
