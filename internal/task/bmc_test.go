package task

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/workspace"
)

func newTestWorkspace(t *testing.T, name string) *workspace.Workspace {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	ws, err := workspace.New(name)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return ws
}

func TestBMCGetCommandLine(t *testing.T) {
	ws := newTestWorkspace(t, "node-test")
	desc := descriptor.BMC{IpmiOverLanPort: 624}

	bt := NewBMCTask("bmc", 1, ws.PidFile("bmc"), "", "dell_c6320", desc, ws)
	bt.binary = "ipmi_sim"

	cmd, err := bt.GetCommandLine()
	if err != nil {
		t.Fatalf("GetCommandLine: %v", err)
	}

	if !strings.HasPrefix(cmd, "ipmi_sim -c ") {
		t.Fatalf("got %q", cmd)
	}
	if !strings.Contains(cmd, "-n -s /var/tmp") {
		t.Fatalf("expected trailing -n -s /var/tmp, got %q", cmd)
	}
	if !strings.Contains(cmd, ws.ConfigFile()) {
		t.Fatalf("expected default config file path, got %q", cmd)
	}
}

func TestBMCResolveEmuFileOverride(t *testing.T) {
	ws := newTestWorkspace(t, "node-test")
	desc := descriptor.BMC{EmuFile: "/opt/infrasim/custom.emu"}

	bt := NewBMCTask("bmc", 1, ws.PidFile("bmc"), "", "dell_c6320", desc, ws)
	if got := bt.resolveEmuFile(); got != "/opt/infrasim/custom.emu" {
		t.Fatalf("got %q", got)
	}
}

// TestBMCResolveEmuFileDefaultsToVendorType covers the common case where
// bmc.emu_file is omitted: the default must match the asset the orchestrator
// actually stages under data/<type>.emu (spec.md §8 "Vendor type" scenario),
// not a fixed filename.
func TestBMCResolveEmuFileDefaultsToVendorType(t *testing.T) {
	ws := newTestWorkspace(t, "node-test")
	desc := descriptor.BMC{}

	bt := NewBMCTask("bmc", 1, ws.PidFile("bmc"), "", "dell_c6320", desc, ws)
	want := ws.Data() + "/dell_c6320.emu"
	if got := bt.resolveEmuFile(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBMCPrecheckRejectsNegativeWaits(t *testing.T) {
	ws := newTestWorkspace(t, "node-test")
	desc := descriptor.BMC{PoweroffWait: -1, EmuFile: ws.Data() + "/test.emu", ConfigFile: ws.Data() + "/test.conf"}

	bt := NewBMCTask("bmc", 1, ws.PidFile("bmc"), "", "dell_c6320", desc, ws)
	bt.binary = "true" // always resolvable, isolates the assertion under test

	// Stand in for every other existence check so only the poweroff_wait
	// validation is exercised.
	mustTouch(t, ws.StartCmdScript())
	mustTouch(t, ws.ChassisControlScript())
	mustTouch(t, ws.LanControlScript())
	mustTouch(t, desc.EmuFile)
	mustTouch(t, desc.ConfigFile)

	err := bt.Precheck(623)
	if err == nil {
		t.Fatal("expected ArgsIncorrect for negative poweroff_wait")
	}
	if !strings.Contains(err.Error(), "poweroff_wait") {
		t.Fatalf("expected the poweroff_wait check to fire first, got %v", err)
	}
}

func mustTouch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}
