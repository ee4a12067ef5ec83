package compiler

import "testing"

func facts(ids ...string) []containerFacts {
	out := make([]containerFacts, len(ids))
	for i, id := range ids {
		out[i] = containerFacts{id: id}
	}
	return out
}

func TestAssignInterfaceAutoIncrements(t *testing.T) {
	st := newCompileState(facts("c1"))

	if got := st.assignInterface("c1", ""); got != "eth1" {
		t.Errorf("first auto-assignment = %q, want eth1", got)
	}
	if got := st.assignInterface("c1", ""); got != "eth2" {
		t.Errorf("second auto-assignment = %q, want eth2", got)
	}
}

func TestPreregisterAdvancesHighWaterToAvoidCollision(t *testing.T) {
	st := newCompileState(facts("c1"))

	st.preregister("c1", "eth3")
	if got := st.assignInterface("c1", ""); got != "eth4" {
		t.Errorf("auto-assignment after preregister(eth3) = %q, want eth4", got)
	}
}

func TestAssignInterfaceExplicitNameIsUsedVerbatim(t *testing.T) {
	st := newCompileState(facts("c1"))

	if got := st.assignInterface("c1", "wan0"); got != "wan0" {
		t.Errorf("explicit assignment = %q, want wan0", got)
	}
	// An explicit name with no numeric suffix doesn't disturb the
	// high-water mark, so the next auto-assignment still starts at eth1.
	if got := st.assignInterface("c1", ""); got != "eth1" {
		t.Errorf("auto-assignment after non-numeric explicit name = %q, want eth1", got)
	}
}

func TestAssignInterfaceUnknownContainerReturnsExplicit(t *testing.T) {
	st := newCompileState(facts("c1"))
	if got := st.assignInterface("ghost", "eth5"); got != "eth5" {
		t.Errorf("assignInterface(unknown container) = %q, want eth5 passthrough", got)
	}
}

func TestSortedIfacesOrdersByEthIndex(t *testing.T) {
	st := newCompileState(facts("c1"))
	st.preregister("c1", "eth3")
	st.preregister("c1", "eth1")
	st.preregister("c1", "eth2")

	got := st.sortedIfaces(0)
	want := []string{"eth1", "eth2", "eth3"}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("sortedIfaces = %v, want %v", got, want)
		}
	}
}

func TestEthIndexHandlesNonNumericSuffix(t *testing.T) {
	if got := ethIndex("eth7"); got != 7 {
		t.Errorf("ethIndex(eth7) = %d, want 7", got)
	}
	if got := ethIndex("wan0"); got != 0 {
		t.Errorf("ethIndex(wan0) = %d, want 0 (non-numeric fallback)", got)
	}
}
