package compiler

import (
	"sort"
	"strconv"
	"strings"

	"ae3gis-labd/internal/topology"
)

// containerFacts is one row of the arena-style container table: everything
// the compiler needs to know about a single container, looked up once and
// then referenced by dense integer index for the rest of compilation.
type containerFacts struct {
	id    string
	typ   topology.ContainerType
	ip    string
	image string

	subnetID   string
	subnetCIDR string
	prefixLen  string
	// gateway is the subnet's effective gateway IP (user-declared, or
	// auto-assigned from the elected gateway router) — what a host in this
	// subnet should route its default traffic through.
	gateway string
}

// route is a static route synthesized for a cross-subnet PtP link.
type route struct {
	destCIDR string
	viaIP    string
}

// ifaceAssignment records the IP (and prefix) materialized onto one
// container's interface.
type ifaceAssignment struct {
	ip  string
	pfx string
}

// compileState is the arena: a flat indexed table of container facts, plus
// per-container side tables keyed by the same dense index. Every map here
// is keyed by table index, not string id, to avoid repeated string-keyed
// lookups during the hot compilation loops (Design Notes: "arena-style
// allocation ... key every per-container dictionary by table index").
type compileState struct {
	containers []containerFacts
	idIndex    map[string]int

	claimed    []map[string]bool // per-container claimed interface names
	highWater  []int             // per-container highest ethN index claimed
	homeIface  []string          // per-container home interface, "" if unset
	ptpRoutes  [][]route         // per-container synthesized static routes
	ifaceIP    []map[string]ifaceAssignment

	linkRegistry []Link

	diag Diagnostics
}

func newCompileState(facts []containerFacts) *compileState {
	st := &compileState{
		containers: facts,
		idIndex:    make(map[string]int, len(facts)),
		claimed:    make([]map[string]bool, len(facts)),
		highWater:  make([]int, len(facts)),
		homeIface:  make([]string, len(facts)),
		ptpRoutes:  make([][]route, len(facts)),
		ifaceIP:    make([]map[string]ifaceAssignment, len(facts)),
	}
	for i, f := range facts {
		st.idIndex[f.id] = i
		st.claimed[i] = make(map[string]bool)
		st.ifaceIP[i] = make(map[string]ifaceAssignment)
	}
	return st
}

func (st *compileState) index(id string) (int, bool) {
	i, ok := st.idIndex[id]
	return i, ok
}

// preregister marks an explicitly-named interface as claimed and advances
// the container's high-water mark so auto-assignment never collides with it.
func (st *compileState) preregister(id, iface string) {
	i, ok := st.index(id)
	if !ok || iface == "" {
		return
	}
	st.claimed[i][iface] = true
	if idx := ethIndex(iface); idx > st.highWater[i] {
		st.highWater[i] = idx
	}
}

// assignInterface returns the interface name to use for a connection side:
// the explicit name if given, otherwise the next free ethN.
func (st *compileState) assignInterface(id, explicit string) string {
	i, ok := st.index(id)
	if !ok {
		return explicit
	}
	if explicit != "" {
		st.claimed[i][explicit] = true
		if idx := ethIndex(explicit); idx > st.highWater[i] {
			st.highWater[i] = idx
		}
		return explicit
	}
	st.highWater[i]++
	name := "eth" + strconv.Itoa(st.highWater[i])
	st.claimed[i][name] = true
	return name
}

// ethIndex extracts the numeric suffix from an interface name like "eth3" → 3.
func ethIndex(iface string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(iface, "eth"))
	if err != nil {
		return 0
	}
	return n
}

// sortedIfaces returns a container's claimed interfaces sorted by eth index,
// with equal indexes (names without an eth suffix) ordered by name.
func (st *compileState) sortedIfaces(i int) []string {
	out := make([]string, 0, len(st.claimed[i]))
	for name := range st.claimed[i] {
		out = append(out, name)
	}
	sort.Slice(out, func(a, b int) bool {
		ia, ib := ethIndex(out[a]), ethIndex(out[b])
		if ia != ib {
			return ia < ib
		}
		return out[a] < out[b]
	})
	return out
}
