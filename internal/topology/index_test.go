package topology

import (
	"reflect"
	"testing"
)

func sampleTopology() Topology {
	return Topology{
		Name: "classroom-a",
		Sites: []Site{
			{
				ID: "site-1",
				Subnets: []Subnet{
					{
						ID:   "subnet-1",
						CIDR: "10.0.1.0/24",
						Containers: []Container{
							{ID: "router-1", Type: TypeRouter, IP: "10.0.1.1"},
							{ID: "host-1", Type: TypeWorkstation, IP: "10.0.1.10"},
						},
					},
					{
						ID:   "subnet-2",
						CIDR: "10.0.2.0/24",
						Containers: []Container{
							{ID: "host-2", Type: TypeWorkstation, IP: "10.0.2.10"},
						},
					},
				},
			},
		},
	}
}

func TestBuildIndexPopulatesAllTables(t *testing.T) {
	idx := BuildIndex(sampleTopology())

	if len(idx.Containers) != 3 {
		t.Fatalf("Containers = %d entries, want 3", len(idx.Containers))
	}
	if len(idx.Subnets) != 2 {
		t.Fatalf("Subnets = %d entries, want 2", len(idx.Subnets))
	}
	if len(idx.Sites) != 1 {
		t.Fatalf("Sites = %d entries, want 1", len(idx.Sites))
	}

	if got := idx.ContainerSubnet["host-1"]; got != "subnet-1" {
		t.Errorf("ContainerSubnet[host-1] = %q, want subnet-1", got)
	}
	if got := idx.ContainerSubnet["host-2"]; got != "subnet-2" {
		t.Errorf("ContainerSubnet[host-2] = %q, want subnet-2", got)
	}
	if got := idx.SubnetSite["subnet-1"]; got != "site-1" {
		t.Errorf("SubnetSite[subnet-1] = %q, want site-1", got)
	}

	wantOrder := []string{"subnet-1", "subnet-2"}
	if got := idx.SiteSubnetOrder["site-1"]; !reflect.DeepEqual(got, wantOrder) {
		t.Errorf("SiteSubnetOrder[site-1] = %v, want %v", got, wantOrder)
	}
}

func TestClassify(t *testing.T) {
	idx := BuildIndex(sampleTopology())

	tests := []struct {
		name string
		id   string
		want RefKind
	}{
		{"container", "router-1", RefContainer},
		{"subnet", "subnet-1", RefSubnet},
		{"site", "site-1", RefSite},
		{"unknown", "does-not-exist", RefUnknown},
		{"empty", "", RefUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := idx.Classify(tt.id)
			if ref.Kind != tt.want {
				t.Errorf("Classify(%q).Kind = %v, want %v", tt.id, ref.Kind, tt.want)
			}
			if tt.want != RefUnknown || tt.id != "" {
				if ref.ID != tt.id {
					t.Errorf("Classify(%q).ID = %q, want %q", tt.id, ref.ID, tt.id)
				}
			}
		})
	}

	if ref := idx.Classify(""); ref.ID != "" {
		t.Errorf("Classify(\"\").ID = %q, want empty", ref.ID)
	}
}

func TestBuildIndexEmptyTopology(t *testing.T) {
	idx := BuildIndex(Topology{})
	if len(idx.Containers) != 0 || len(idx.Subnets) != 0 || len(idx.Sites) != 0 {
		t.Fatalf("expected empty index for empty topology, got %+v", idx)
	}
}
