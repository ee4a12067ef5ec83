package compiler

import "ae3gis-labd/internal/topology"

// electGateway picks the gateway router/firewall for one subnet: the
// router/firewall whose primary IP equals the subnet's declared gateway,
// falling back to the first router/firewall in document order, falling back
// to none (host-only subnet).
func electGateway(subnet topology.Subnet) string {
	var fallback string
	for _, c := range subnet.Containers {
		if !c.Type.IsRouter() {
			continue
		}
		if fallback == "" {
			fallback = c.ID
		}
		if subnet.Gateway != "" && c.IP == subnet.Gateway {
			return c.ID
		}
	}
	return fallback
}

// gatewayTables holds the per-subnet and per-site elected gateway routers,
// and the effective gateway IP for every subnet (declared, or auto-assigned
// from the elected gateway).
type gatewayTables struct {
	subnetGateway     map[string]string // subnet id -> elected gateway container id
	siteGateway       map[string]string // site id -> elected gateway container id (via first eligible subnet)
	subnetEffectiveGW map[string]string // subnet id -> effective gateway IP
}

func buildGatewayTables(t topology.Topology, idx topology.Index) gatewayTables {
	gt := gatewayTables{
		subnetGateway:     make(map[string]string),
		siteGateway:       make(map[string]string),
		subnetEffectiveGW: make(map[string]string),
	}

	for _, site := range t.Sites {
		for _, subnet := range site.Subnets {
			gwID := electGateway(subnet)
			if gwID != "" {
				gt.subnetGateway[subnet.ID] = gwID
			}

			effective := subnet.Gateway
			if effective == "" && gwID != "" {
				if c, ok := idx.Containers[gwID]; ok {
					effective = c.IP
				}
			}
			gt.subnetEffectiveGW[subnet.ID] = effective
		}

		for _, subnetID := range idx.SiteSubnetOrder[site.ID] {
			if gwID, ok := gt.subnetGateway[subnetID]; ok {
				gt.siteGateway[site.ID] = gwID
				break
			}
		}
	}

	return gt
}

// resolveEndpoint maps a raw endpoint id to the real container id it should
// bind to: a container id passes through, a subnet id resolves to that
// subnet's elected gateway router, a site id resolves to the gateway router
// of the first of its subnets that has one. Unresolvable or foreign ids
// return "".
func resolveEndpoint(rawID string, idx topology.Index, gt gatewayTables) string {
	ref := idx.Classify(rawID)
	switch ref.Kind {
	case topology.RefContainer:
		return ref.ID
	case topology.RefSubnet:
		return gt.subnetGateway[ref.ID]
	case topology.RefSite:
		return gt.siteGateway[ref.ID]
	default:
		return ""
	}
}

// buildContainerFacts flattens every container in the topology into the
// arena table, carrying its subnet's CIDR/prefix/effective-gateway.
func buildContainerFacts(t topology.Topology, gt gatewayTables) []containerFacts {
	var facts []containerFacts
	for _, site := range t.Sites {
		for _, subnet := range site.Subnets {
			prefix := "24"
			if p := prefixLenOf(subnet.CIDR); p != "" {
				prefix = p
			}
			for _, c := range subnet.Containers {
				facts = append(facts, containerFacts{
					id:         c.ID,
					typ:        c.Type,
					ip:         c.IP,
					image:      c.Image,
					subnetID:   subnet.ID,
					subnetCIDR: subnet.CIDR,
					prefixLen:  prefix,
					gateway:    gt.subnetEffectiveGW[subnet.ID],
				})
			}
		}
	}
	return facts
}

// prefixLenOf extracts the prefix length from a CIDR string like
// "10.0.0.0/24" → "24". Returns "" if the CIDR has no slash.
func prefixLenOf(cidr string) string {
	for i := len(cidr) - 1; i >= 0; i-- {
		if cidr[i] == '/' {
			return cidr[i+1:]
		}
	}
	return ""
}
