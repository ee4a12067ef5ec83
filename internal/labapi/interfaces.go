package labapi

import (
	"context"

	"ae3gis-labd/internal/topology"
)

// TopologyStore is the narrow persistence seam the orchestrator core needs:
// reading a topology by id and tracking its lifecycle status. The CRUD
// surface a production deployment builds around topology authoring lives
// outside this module; TopologyStore is everything the core calls.
type TopologyStore interface {
	Get(ctx context.Context, id string) (topology.Topology, bool, error)
	Status(ctx context.Context, id string) (string, error)
	SetStatus(ctx context.Context, id string, status string) error
}

// Identity is the caller resolved from a token: an instructor (unscoped) or
// a student (scoped to one topology).
type Identity struct {
	Role       string // "instructor" | "student"
	TopologyID string // only meaningful when Role == "student"
}

// IsInstructor reports whether the identity carries unscoped access.
func (id Identity) IsInstructor() bool {
	return id.Role == "instructor"
}

// CanAccess reports whether the identity may act on the given topology:
// instructors may act on any topology, students only on their own.
func (id Identity) CanAccess(topologyID string) bool {
	if id.IsInstructor() {
		return true
	}
	return id.TopologyID == topologyID
}

// Authenticator resolves an opaque bearer token into an Identity.
type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// ContainerStatus is one entry of an inspection result, shared by every
// component that consumes the Lab Driver's best-effort inspection read.
type ContainerStatus struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	IPv4Address string `json:"ipv4_address,omitempty"`
}
