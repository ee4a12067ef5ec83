// Package compiler transforms a logical, user-authored topology into a flat
// container-lab descriptor: a set of nodes with per-node boot commands, and
// a set of point-to-point links with explicit per-endpoint interface names.
//
// Compile is pure: its only inputs are the topology and the topology's
// stable id, and it never fails. Malformed input (foreign ids, unresolvable
// endpoints) produces a degraded-but-valid descriptor; every skip is
// recorded in the returned Diagnostics instead.
package compiler

import (
	"sort"

	"ae3gis-labd/internal/topology"
)

const (
	imageRouter = "frrouting/frr:latest"
	imageHost   = "alpine:latest"

	ptpPool = "10.255.0.0/24"
)

// Compile produces a Descriptor and a Diagnostics sink for one topology.
func Compile(t topology.Topology, topologyID string) (Descriptor, Diagnostics) {
	idx := topology.BuildIndex(t)
	gt := buildGatewayTables(t, idx)
	facts := buildContainerFacts(t, gt)
	st := newCompileState(facts)

	conns := connectionScopes(t)

	// Pass 1: register every explicitly-named interface across every scope
	// before any auto-assignment happens, so auto-assignment never collides
	// with an interface a connection pinned explicitly.
	for _, scope := range conns {
		for _, c := range scope.conns {
			fromID := resolveEndpoint(c.RawFrom(), idx, gt)
			toID := resolveEndpoint(c.RawTo(), idx, gt)
			st.preregister(fromID, c.FromInterface)
			st.preregister(toID, c.ToInterface)
		}
	}

	// Pass 2: walk intra-subnet → inter-subnet → inter-site, resolving each
	// connection into a real container pair and allocating/claiming each
	// side's interface. This ordering guarantees intra-subnet ("home")
	// interfaces receive the lower indices.
	for _, scope := range conns {
		for _, c := range scope.conns {
			addLink(st, c, idx, gt)
		}
	}

	materializeIPs(st)
	nodes := make(map[string]Node, len(facts))
	order := make([]string, 0, len(facts))
	for i, f := range facts {
		nodes[f.id] = buildNode(st, i, f)
		order = append(order, f.id)
	}
	sort.Strings(order)

	d := Descriptor{
		Name:      t.DeploymentName(),
		NodeOrder: order,
		Nodes:     nodes,
		Links:     st.linkRegistry,
	}
	return d, st.diag
}

// connScope is one of the three connection scopes a topology carries
// connections at, walked in the order the interface-allocation algorithm
// requires: intra-subnet, inter-subnet, inter-site.
type connScope struct {
	name  string
	conns []topology.Connection
}

func connectionScopes(t topology.Topology) []connScope {
	var intraSubnet, interSubnet []topology.Connection
	for _, site := range t.Sites {
		for _, subnet := range site.Subnets {
			intraSubnet = append(intraSubnet, subnet.Connections...)
		}
		interSubnet = append(interSubnet, site.SubnetConnections...)
	}
	return []connScope{
		{"intra-subnet", intraSubnet},
		{"inter-subnet", interSubnet},
		{"inter-site", t.SiteConnections},
	}
}

// addLink resolves one connection into a real container pair (dropping it,
// with a diagnostic, if either side can't be resolved) and appends it to the
// link registry with each side's allocated interface.
func addLink(st *compileState, c topology.Connection, idx topology.Index, gt gatewayTables) {
	fromID := resolveEndpoint(c.RawFrom(), idx, gt)
	toID := resolveEndpoint(c.RawTo(), idx, gt)

	if fromID == "" || toID == "" {
		st.diag.skip("connection", c.RawFrom()+"->"+c.RawTo(), "endpoint did not resolve to a container")
		return
	}
	if _, ok := st.index(fromID); !ok {
		st.diag.skip("connection", fromID, "resolved endpoint is not a known container")
		return
	}
	if _, ok := st.index(toID); !ok {
		st.diag.skip("connection", toID, "resolved endpoint is not a known container")
		return
	}

	fromIface := st.assignInterface(fromID, c.FromInterface)
	toIface := st.assignInterface(toID, c.ToInterface)

	st.linkRegistry = append(st.linkRegistry, Link{
		FromID:    fromID,
		FromIface: fromIface,
		ToID:      toID,
		ToIface:   toIface,
	})
}

func imageFor(typ topology.ContainerType, override string) string {
	if override != "" {
		return override
	}
	if typ.IsRouter() {
		return imageRouter
	}
	return imageHost
}
