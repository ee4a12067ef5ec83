package compiler

// Descriptor is the compiled, flat container-lab specification: a set of
// nodes with per-node boot commands, and a set of point-to-point links with
// explicit per-endpoint interface names. It corresponds 1:1 to the YAML
// shape the Descriptor Writer emits.
type Descriptor struct {
	Name string

	// NodeOrder preserves a deterministic (sorted) key order so two
	// compilations of the same topology produce struct-equal output even
	// though Nodes is a map.
	NodeOrder []string
	Nodes     map[string]Node

	Links []Link
}

// Node is one compiled lab node.
type Node struct {
	Kind string
	Image string
	// Exec holds the node's boot commands, in the order they must run. A
	// nil/empty slice means the node boots with no post-start configuration.
	Exec []string
}

// Link is a point-to-point connection between two node interfaces.
type Link struct {
	FromID    string
	FromIface string
	ToID      string
	ToIface   string
}

// Endpoints renders the link in "id:ethN" wire form, in from/to order.
func (l Link) Endpoints() [2]string {
	return [2]string{l.FromID + ":" + l.FromIface, l.ToID + ":" + l.ToIface}
}

// Diagnostics accumulates non-fatal problems found while compiling a
// topology. The compiler never fails; everything it cannot resolve is
// recorded here instead, per the "compiler never fails" invariant.
type Diagnostics struct {
	Skipped []SkipReason
}

// SkipReason records one connection or container that was dropped rather
// than compiled, and why.
type SkipReason struct {
	Kind    string // "connection" | "container"
	ID      string
	Message string
}

func (d *Diagnostics) skip(kind, id, message string) {
	d.Skipped = append(d.Skipped, SkipReason{Kind: kind, ID: id, Message: message})
}
