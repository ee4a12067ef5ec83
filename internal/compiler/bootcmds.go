package compiler

import (
	"fmt"
	"strings"
)

// buildNode synthesizes one container's node descriptor: image election plus
// type-specific boot commands. Commands must be idempotent and tolerate
// partial failure so a stock minimal image always boots (spec requirement
// for switch bridging in particular).
func buildNode(st *compileState, i int, f containerFacts) Node {
	ifaces := st.sortedIfaces(i)

	var exec []string
	switch {
	case f.typ.IsSwitch():
		exec = switchBootCommand(ifaces, f)
	case f.typ.IsRouter():
		exec = routerBootCommands(ifaces, st.ifaceIP[i], st.ptpRoutes[i])
	default:
		exec = hostBootCommands(ifaces, st.homeIface[i], f)
	}

	return Node{
		Kind:  "linux",
		Image: imageFor(f.typ, f.image),
		Exec:  exec,
	}
}

// switchBootCommand brings every data interface up, creates br0 if absent,
// enslaves every interface to it, and brings br0 up, all in a single shell
// invocation so the operations can be chained with "|| true" for
// idempotency and partial-failure tolerance. If the container has a primary
// IP it's assigned to br0, falling back to the first data interface.
func switchBootCommand(ifaces []string, f containerFacts) []string {
	if len(ifaces) == 0 {
		return nil
	}

	ifaceList := strings.Join(ifaces, " ")
	var b strings.Builder
	b.WriteString("sh -lc '")
	fmt.Fprintf(&b, "for i in %s; do ip link set \"$i\" up >/dev/null 2>&1 || true; done; ", ifaceList)
	b.WriteString("ip link show br0 >/dev/null 2>&1 || ip link add br0 type bridge || true; ")
	fmt.Fprintf(&b, "for i in %s; do ip link set \"$i\" master br0 >/dev/null 2>&1 || true; done; ", ifaceList)
	b.WriteString("ip link set br0 up >/dev/null 2>&1 || true")
	if f.ip != "" {
		fmt.Fprintf(&b, "; ip addr replace %s/%s dev br0 >/dev/null 2>&1 || ip addr replace %s/%s dev %s >/dev/null 2>&1 || true",
			f.ip, f.prefixLen, f.ip, f.prefixLen, ifaces[0])
	}
	b.WriteString("'")
	return []string{b.String()}
}

// routerBootCommands enables IPv4 forwarding, assigns every interface's
// materialized IP, and installs the static routes synthesized for any
// cross-subnet point-to-point links.
func routerBootCommands(ifaces []string, ips map[string]ifaceAssignment, routes []route) []string {
	cmds := []string{"sysctl -w net.ipv4.ip_forward=1"}
	for _, iface := range ifaces {
		if a, ok := ips[iface]; ok {
			cmds = append(cmds, fmt.Sprintf("ip addr add %s/%s dev %s", a.ip, a.pfx, iface))
		}
	}
	for _, r := range routes {
		cmds = append(cmds, fmt.Sprintf("ip route add %s via %s", r.destCIDR, r.viaIP))
	}
	return cmds
}

// hostBootCommands assigns the container's primary IP to its home interface
// and replaces the default route with the subnet's effective gateway. A
// default route (rather than per-subnet routes) is required so that hosts
// reply to cross-subnet probes sourced from router PtP addresses.
func hostBootCommands(ifaces []string, homeIface string, f containerFacts) []string {
	var cmds []string

	target := homeIface
	if target == "" && len(ifaces) > 0 {
		target = ifaces[0]
	}
	if f.ip != "" && target != "" {
		cmds = append(cmds, fmt.Sprintf("ip addr add %s/%s dev %s", f.ip, f.prefixLen, target))
	}
	if f.gateway != "" {
		cmds = append(cmds, fmt.Sprintf("ip route replace default via %s", f.gateway))
	}
	return cmds
}
