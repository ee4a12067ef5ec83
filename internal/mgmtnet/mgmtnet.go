// Package mgmtnet computes the deterministic management network a topology
// deploys its containers onto: a name and an IPv4/IPv6 subnet pair, derived
// purely from the topology id and a retry attempt number so the Lab Driver
// can recompute the same plan on every retry without persisting state.
package mgmtnet

import (
	"fmt"
	"net/netip"
)

// slotSpace is the number of /24s carved out of 100.64.0.0/10: second octet
// spans 64..127 (64 values), third octet spans 0..255, for 64*256 slots.
const slotSpace = 64 * 256

// stride advances the slot on each retry attempt. 9973 is prime and
// co-prime with slotSpace (16384 = 2^14), so repeated addition visits every
// slot before it cycles back to the start.
const stride = 9973

const maxAttempt = 3

// Plan is one fully-materialized management network assignment.
type Plan struct {
	Name string
	IPv4 netip.Prefix
	IPv6 netip.Prefix
}

// Allocate computes the management network plan for a topology id at a
// given retry attempt (0..3). It is a pure function: the same (id, attempt)
// pair always yields the same Plan.
func Allocate(topologyID string, attempt int) (Plan, error) {
	if attempt < 0 || attempt > maxAttempt {
		return Plan{}, fmt.Errorf("mgmtnet: attempt %d out of range 0..%d", attempt, maxAttempt)
	}

	id8, err := first8Hex(topologyID)
	if err != nil {
		return Plan{}, fmt.Errorf("mgmtnet: %w", err)
	}

	seed := seedFromHex(id8)
	slot := (seed + uint32(attempt)*stride) % slotSpace

	octet2 := 64 + slot/256
	octet3 := slot % 256

	ipv4 := netip.PrefixFrom(netip.AddrFrom4([4]byte{100, byte(octet2), byte(octet3), 0}), 24)

	v6Addr, err := netip.ParseAddr(fmt.Sprintf("3fff:100:%02x%02x::", octet2, octet3))
	if err != nil {
		return Plan{}, fmt.Errorf("mgmtnet: build ipv6 address: %w", err)
	}
	ipv6 := netip.PrefixFrom(v6Addr, 64)

	return Plan{
		Name: "ae3gis-mgmt-" + id8,
		IPv4: ipv4,
		IPv6: ipv6,
	}, nil
}

// first8Hex returns the first 8 characters of id with their case unchanged,
// validating that they are all hex digits (the id is expected to be a UUID or similar
// hex-prefixed identifier).
func first8Hex(id string) (string, error) {
	if len(id) < 8 {
		return "", fmt.Errorf("topology id %q shorter than 8 characters", id)
	}
	prefix := id[:8]
	for _, r := range prefix {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return "", fmt.Errorf("topology id %q does not start with 8 hex digits", id)
		}
	}
	return prefix, nil
}

// seedFromHex interprets an 8-hex-digit string as a 32-bit integer.
func seedFromHex(hex8 string) uint32 {
	var v uint32
	for _, r := range hex8 {
		v <<= 4
		switch {
		case r >= '0' && r <= '9':
			v |= uint32(r - '0')
		case r >= 'a' && r <= 'f':
			v |= uint32(r-'a') + 10
		case r >= 'A' && r <= 'F':
			v |= uint32(r-'A') + 10
		}
	}
	return v
}
