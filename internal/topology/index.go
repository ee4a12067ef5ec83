package topology

// RefKind classifies what kind of entity a raw connection endpoint id names.
// Centralizing classification here means endpoint resolution never falls
// back to ad hoc string comparisons scattered across the compiler.
type RefKind int

const (
	RefUnknown RefKind = iota
	RefContainer
	RefSubnet
	RefSite
)

// EndpointRef is a raw connection endpoint id, tagged with the kind of
// entity it names.
type EndpointRef struct {
	Kind RefKind
	ID   string
}

// Index is a flat, read-only lookup built once from a Topology: every
// container, subnet, and site keyed by id, plus each container's and
// subnet's containing scope. Building it once avoids repeated tree walks
// during compilation.
type Index struct {
	Containers map[string]Container
	Subnets    map[string]Subnet
	Sites      map[string]Site

	// ContainerSubnet maps a container id to the id of the subnet it lives in.
	ContainerSubnet map[string]string
	// SubnetSite maps a subnet id to the id of the site it lives in.
	SubnetSite map[string]string
	// SiteSubnetOrder preserves each site's subnets in authored order, for
	// "first subnet with an elected gateway" resolution.
	SiteSubnetOrder map[string][]string
}

// BuildIndex walks a Topology once and returns a flat Index.
func BuildIndex(t Topology) Index {
	idx := Index{
		Containers:      make(map[string]Container),
		Subnets:         make(map[string]Subnet),
		Sites:           make(map[string]Site),
		ContainerSubnet: make(map[string]string),
		SubnetSite:      make(map[string]string),
		SiteSubnetOrder: make(map[string][]string),
	}

	for _, site := range t.Sites {
		idx.Sites[site.ID] = site
		order := make([]string, 0, len(site.Subnets))
		for _, subnet := range site.Subnets {
			idx.Subnets[subnet.ID] = subnet
			idx.SubnetSite[subnet.ID] = site.ID
			order = append(order, subnet.ID)
			for _, c := range subnet.Containers {
				idx.Containers[c.ID] = c
				idx.ContainerSubnet[c.ID] = subnet.ID
			}
		}
		idx.SiteSubnetOrder[site.ID] = order
	}

	return idx
}

// Classify tags a raw endpoint id by the kind of entity it names.
func (idx Index) Classify(id string) EndpointRef {
	if id == "" {
		return EndpointRef{Kind: RefUnknown}
	}
	if _, ok := idx.Containers[id]; ok {
		return EndpointRef{Kind: RefContainer, ID: id}
	}
	if _, ok := idx.Subnets[id]; ok {
		return EndpointRef{Kind: RefSubnet, ID: id}
	}
	if _, ok := idx.Sites[id]; ok {
		return EndpointRef{Kind: RefSite, ID: id}
	}
	return EndpointRef{Kind: RefUnknown, ID: id}
}
