package descriptor

import "testing"

const sampleYAML = `
name: node-1
type: dell_c6320
compute:
  kvm_enabled: true
  cpu:
    quantities: 8
  memory:
    size: 1536
  storage_backend:
    - type: ahci
      max_drive_per_controller: 6
      drives:
        - size: 8
        - size: 8
bmc:
  ipmi_over_lan_port: 624
`

func TestParseAppliesDefaults(t *testing.T) {
	n, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Name != "node-1" {
		t.Fatalf("got name %q", n.Name)
	}
	if n.Compute.CPU.Sockets != 2 {
		t.Fatalf("expected default sockets=2, got %d", n.Compute.CPU.Sockets)
	}
	if n.Compute.CPU.Type != "host" {
		t.Fatalf("expected default cpu type host, got %q", n.Compute.CPU.Type)
	}
	if n.BmcConnectionPort != DefaultBmcConnectionPort {
		t.Fatalf("expected default bmc_connection_port, got %d", n.BmcConnectionPort)
	}
	if n.Compute.StorageBackend[0].Drives[0].Cache != "writeback" {
		t.Fatalf("expected default drive cache writeback, got %q", n.Compute.StorageBackend[0].Drives[0].Cache)
	}
	if n.BMC.IpmiOverLanPort != 624 {
		t.Fatalf("expected override to survive defaulting, got %d", n.BMC.IpmiOverLanPort)
	}
}

func TestParseDefaultNodeName(t *testing.T) {
	n, err := Parse([]byte("type: quanta_d51\ncompute:\n  memory:\n    size: 512\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name != "node-0" {
		t.Fatalf("got name %q", n.Name)
	}
}

func TestValidateRequiresType(t *testing.T) {
	n := &Node{Name: "x"}
	if err := n.Validate(); err == nil {
		t.Fatal("expected ArgsIncorrect when type is missing")
	}
}

func TestIsMegasasAndLSI(t *testing.T) {
	cases := map[string]struct{ megasas, lsi bool }{
		"ahci":           {false, false},
		"megasas":        {true, false},
		"megasas-gen2":   {true, false},
		"lsi53c895a":     {false, true},
		"lsi":            {false, true},
	}
	for in, want := range cases {
		if got := IsMegasas(in); got != want.megasas {
			t.Errorf("IsMegasas(%q) = %v, want %v", in, got, want.megasas)
		}
		if got := IsLSI(in); got != want.lsi {
			t.Errorf("IsLSI(%q) = %v, want %v", in, got, want.lsi)
		}
	}
}
