package node

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/infrasim/nodesim/internal/descriptor"
)

func newTestOrchestrator(t *testing.T, desc *descriptor.Node) *Orchestrator {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	orch, err := New(desc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := orch.MaterializeWorkspace(); err != nil {
		t.Fatalf("MaterializeWorkspace: %v", err)
	}
	if err := orch.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return orch
}

func baseDescriptor() *descriptor.Node {
	return &descriptor.Node{
		Name:              "node-test",
		Type:              "dell_c6320",
		SerialPort:        9103,
		IpmiConsolePort:   9100,
		BmcConnectionPort: 9102,
		Compute: descriptor.Compute{
			CPU:    descriptor.CPU{Quantities: 8},
			Memory: descriptor.Memory{Size: 1536},
		},
	}
}

func TestMaterializeWorkspaceIsIdempotent(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	before, err := os.ReadFile(orch.Workspace().YmlFile())
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	desc.Type = "changed_after_first_materialize"
	if err := orch.MaterializeWorkspace(); err != nil {
		t.Fatalf("second MaterializeWorkspace: %v", err)
	}

	after, err := os.ReadFile(orch.Workspace().YmlFile())
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	if string(before) != string(after) {
		t.Fatalf("expected data/infrasim.yml to be unchanged by a second materialize call")
	}
}

func TestInitFansOutSharedEndpoints(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	cmd, err := orch.ComputeCommandLine()
	if err != nil {
		t.Fatalf("ComputeCommandLine: %v", err)
	}

	if !strings.Contains(cmd, "port=9102") {
		t.Fatalf("expected compute command to reference bmc_connection_port 9102, got %q", cmd)
	}
	if !strings.Contains(cmd, "-serial mon:udp:127.0.0.1:9103,nowait") {
		t.Fatalf("expected compute command to reference serial_port 9103, got %q", cmd)
	}

	configBytes, err := os.ReadFile(orch.Workspace().ConfigFile())
	if err != nil {
		t.Fatalf("reading rendered bmc config: %v", err)
	}
	config := string(configBytes)
	if !strings.Contains(config, "console 0.0.0.0 9100") {
		t.Fatalf("expected bmc config to reference ipmi_console_port 9100, got %q", config)
	}
	if !strings.Contains(config, "serial 15 0.0.0.0 9102") {
		t.Fatalf("expected bmc config to reference bmc_connection_port 9102, got %q", config)
	}
}

func TestStatusReportsStoppedWithoutPidFiles(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	for name, running := range orch.Status() {
		if running {
			t.Fatalf("expected task %s to be reported stopped with no pid file", name)
		}
	}
}

func TestStatusCleansUpStalePidFile(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	pidFile := orch.Workspace().PidFile("bmc")
	if err := os.WriteFile(pidFile, []byte("999999999"), 0644); err != nil {
		t.Fatalf("writing stale pid file: %v", err)
	}

	status := orch.Status()
	if status["bmc"] {
		t.Fatalf("expected stale pid file to report stopped")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("expected stale pid file to be removed, stat err = %v", err)
	}
}

func TestBMCDescriptorDefaultsWhenAbsent(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	bmc := orch.bmcDescriptor()
	if bmc.IpmiOverLanPort != descriptor.DefaultIpmiOverLanPort {
		t.Fatalf("expected default IOL port %d, got %d", descriptor.DefaultIpmiOverLanPort, bmc.IpmiOverLanPort)
	}
}

func TestSolDeviceDefaultsToWorkspacePty(t *testing.T) {
	desc := baseDescriptor()
	orch := newTestOrchestrator(t, desc)

	if got, want := orch.solDevice(), filepath.Join(orch.Workspace().Root, ".pty0"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
