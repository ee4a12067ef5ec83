package compiler

import "fmt"

// materializeIPs walks the link registry built by pass 2 and assigns either
// a home-interface IP (same-subnet or non-router link, first link wins) or a
// cross-subnet router↔router point-to-point /30 pair plus paired static
// routes.
func materializeIPs(st *compileState) {
	ptpSeq := 0

	for _, link := range st.linkRegistry {
		fi, fOk := st.index(link.FromID)
		ti, tOk := st.index(link.ToID)
		if !fOk || !tOk {
			continue
		}
		fFacts := st.containers[fi]
		tFacts := st.containers[ti]

		crossSubnetRouters := fFacts.subnetCIDR != tFacts.subnetCIDR &&
			fFacts.typ.IsRouter() && tFacts.typ.IsRouter()

		if crossSubnetRouters {
			fromPtp, toPtp := nextPtp(&ptpSeq)
			st.ifaceIP[fi][link.FromIface] = ifaceAssignment{ip: fromPtp, pfx: "30"}
			st.ifaceIP[ti][link.ToIface] = ifaceAssignment{ip: toPtp, pfx: "30"}
			if tFacts.subnetCIDR != "" {
				st.ptpRoutes[fi] = append(st.ptpRoutes[fi], route{destCIDR: tFacts.subnetCIDR, viaIP: toPtp})
			}
			if fFacts.subnetCIDR != "" {
				st.ptpRoutes[ti] = append(st.ptpRoutes[ti], route{destCIDR: fFacts.subnetCIDR, viaIP: fromPtp})
			}
			continue
		}

		if st.homeIface[fi] == "" && fFacts.ip != "" {
			st.homeIface[fi] = link.FromIface
			st.ifaceIP[fi][link.FromIface] = ifaceAssignment{ip: fFacts.ip, pfx: fFacts.prefixLen}
		}
		if st.homeIface[ti] == "" && tFacts.ip != "" {
			st.homeIface[ti] = link.ToIface
			st.ifaceIP[ti][link.ToIface] = ifaceAssignment{ip: tFacts.ip, pfx: tFacts.prefixLen}
		}
	}
}

// nextPtp allocates the next /30 pair from the point-to-point pool
// 10.255.0.0/24: pair N uses .{4N+1} and .{4N+2}.
func nextPtp(seq *int) (string, string) {
	n := *seq
	*seq++
	base := 4 * n
	return fmt.Sprintf("10.255.0.%d", base+1), fmt.Sprintf("10.255.0.%d", base+2)
}
