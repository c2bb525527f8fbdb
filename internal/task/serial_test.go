package task

import (
	"strings"
	"testing"
)

func TestSerialGetCommandLine(t *testing.T) {
	st := NewSerialTask("serial", 0, "/tmp/.serial", "", "/home/user/.infrasim/pty_test", "/home/user/.infrasim/node-0", 9103)

	cmd, err := st.GetCommandLine()
	if err != nil {
		t.Fatalf("GetCommandLine: %v", err)
	}

	if !strings.Contains(cmd, "pty,link=/home/user/.infrasim/pty_test,waitslave") {
		t.Fatalf("got %q", cmd)
	}
	if !strings.Contains(cmd, "udp-listen:9103,reuseaddr") {
		t.Fatalf("got %q", cmd)
	}
}

func TestSerialResolveSolDeviceDefaultsToWorkspace(t *testing.T) {
	st := NewSerialTask("serial", 0, "/tmp/.serial", "", "", "/home/user/.infrasim/node-0", 9103)

	if got, want := st.resolveSolDevice(), "/home/user/.infrasim/node-0/.pty0"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSerialPrecheckRequiresSolDeviceOrWorkspace(t *testing.T) {
	st := NewSerialTask("serial", 0, "/tmp/.serial", "", "", "", 9103)
	st.relayBinary = "true" // always on PATH, avoids a CommandNotFound short-circuit

	if err := st.Precheck(); err == nil {
		t.Fatal("expected ArgsIncorrect when neither sol_device nor workspace is set")
	}
}

func TestSerialPrecheckMissingBinary(t *testing.T) {
	st := NewSerialTask("serial", 0, "/tmp/.serial", "", "/tmp/pty_test", "", 9103)
	st.relayBinary = "definitely-not-a-real-relay-xyz"

	if err := st.Precheck(); err == nil {
		t.Fatal("expected CommandNotFound for missing relay binary")
	}
}
