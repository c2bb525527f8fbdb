package element

import (
	"strings"
	"testing"

	"github.com/infrasim/nodesim/internal/descriptor"
)

func TestNetworkBridgeRender(t *testing.T) {
	n := NewNetwork(descriptor.Network{NetworkMode: "bridge", NetworkName: "br1", Device: "virtio-net-pci"}, 0)
	got := renderOne(t, n)
	if !strings.Contains(got, "-netdev bridge,id=netdev0,br=br1,helper=/usr/libexec/qemu-bridge-helper") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "-device virtio-net-pci,netdev=netdev0,mac=") {
		t.Fatalf("got %q", got)
	}
}

func TestNetworkNatRender(t *testing.T) {
	n := NewNetwork(descriptor.Network{NetworkMode: "nat"}, 0)
	got := renderOne(t, n)
	if got != "-net user -net nic" {
		t.Fatalf("got %q", got)
	}
}

func TestNetworkUnsupportedMode(t *testing.T) {
	n := NewNetwork(descriptor.Network{NetworkMode: "host"}, 0)
	if err := n.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := n.Precheck(); err == nil {
		t.Fatal("expected Unsupported for unknown network mode")
	}
}

func TestAutoMACPrefixAndUniqueness(t *testing.T) {
	bn := NewBackendNetwork([]descriptor.Network{
		{NetworkMode: "nat"},
		{NetworkMode: "nat"},
		{NetworkMode: "nat"},
	})
	if err := bn.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	seen := map[string]bool{}
	for _, n := range bn.Networks() {
		if !strings.HasPrefix(n.MAC(), "52:54:BE:") {
			t.Fatalf("got mac %q, want 52:54:BE: prefix", n.MAC())
		}
		if seen[n.MAC()] {
			t.Fatalf("duplicate mac %q across render", n.MAC())
		}
		seen[n.MAC()] = true
	}
}
