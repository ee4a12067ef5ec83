// Package statusstream drives the long-lived duplex status stream a peer
// opens against one topology: after a successful handshake, the server
// pushes a status snapshot every five seconds until the peer closes.
package statusstream

import (
	"context"
	"encoding/json"
	"time"

	"ae3gis-labd/internal/labapi"
)

// Close codes for policy/not-found rejections, in the WebSocket
// application-defined range (4000-4999 per RFC 6455 §7.4.2); the excluded
// HTTP/WebSocket layer is expected to translate these 1:1 onto the wire.
const (
	CloseForbidden = 4003
	CloseNotFound  = 4004
	CloseNormal    = 1000
)

// Peer is the transport-agnostic duplex endpoint a Session drives. The
// out-of-scope HTTP layer supplies a WebSocket-backed implementation.
type Peer interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Clock abstracts the ticking interval for deterministic tests, grounded on
// the teacher's network.Clock (internal/network/ports.go) pattern of
// injecting time behind a narrow interface.
type Clock interface {
	Tick(d time.Duration) <-chan time.Time
}

// RealClock drives Tick with a real time.Ticker.
type RealClock struct{}

// Tick returns a channel that fires every d. The caller is responsible for
// the ticker's lifetime; RealClock leaks the underlying ticker for the
// duration of the returned channel's use, matching time.Tick's documented
// behavior, which is acceptable here since a Session runs for the lifetime
// of one connection.
func (RealClock) Tick(d time.Duration) <-chan time.Time {
	return time.Tick(d)
}

const tickInterval = 5 * time.Second

// Inspector resolves a topology's current container states. Implemented in
// production by the Lab Driver's Inspect.
type Inspector interface {
	Inspect(ctx context.Context, topologyName string) []labapi.ContainerStatus
}

type snapshot struct {
	Status     string                   `json:"status"`
	Containers []labapi.ContainerStatus `json:"containers"`
}

// Session drives one status stream for one topology.
type Session struct {
	Store     labapi.TopologyStore
	Inspector Inspector
	Clock     Clock
}

// NewSession constructs a Session with a RealClock.
func NewSession(store labapi.TopologyStore, inspector Inspector) *Session {
	return &Session{Store: store, Inspector: inspector, Clock: RealClock{}}
}

// Run authenticates and validates the request, then streams status
// snapshots to peer every five seconds until ctx is cancelled or peer
// closes. It returns only after the stream has ended; the caller is
// expected to call it from the goroutine that owns the peer connection.
func (s *Session) Run(ctx context.Context, identity labapi.Identity, topologyID, topologyName string, peer Peer) error {
	if !identity.CanAccess(topologyID) {
		return peer.Close(CloseForbidden, "forbidden")
	}

	if _, ok, err := s.Store.Get(ctx, topologyID); err != nil {
		return err
	} else if !ok {
		return peer.Close(CloseNotFound, "topology not found")
	}

	ticks := s.Clock.Tick(tickInterval)
	for {
		select {
		case <-ctx.Done():
			return peer.Close(CloseNormal, "context done")
		case <-ticks:
			if err := s.sendSnapshot(ctx, topologyID, topologyName, peer); err != nil {
				return err
			}
		}
	}
}

func (s *Session) sendSnapshot(ctx context.Context, topologyID, topologyName string, peer Peer) error {
	status, err := s.Store.Status(ctx, topologyID)
	if err != nil {
		status = ""
	}

	containers := s.Inspector.Inspect(ctx, topologyName)
	if containers == nil {
		containers = []labapi.ContainerStatus{}
	}

	payload, err := json.Marshal(snapshot{Status: status, Containers: containers})
	if err != nil {
		return err
	}
	return peer.Send(payload)
}
