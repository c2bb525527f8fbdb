package task

import (
	"fmt"
	"os/exec"

	"github.com/kr/pty"

	"github.com/infrasim/nodesim/internal/nodeerr"
)

const serialComponent = "task:serial"

// DefaultRelayBinary mirrors the original source's socat default -- the
// byte-stream relay bridging the SOL pseudo-terminal to a UDP socket
// (spec.md §4.8).
const DefaultRelayBinary = "socat"

// SerialTask is the concrete supervisor for the byte-stream relay between
// the SOL pseudo-terminal and a UDP socket (spec.md §4.8).
type SerialTask struct {
	*Task

	relayBinary string
	solDevice   string
	workspace   string
	serialPort  int
}

// NewSerialTask returns a serial-bridge task. solDevice is the pseudo-tty
// link path (spec.md §3 sol_device, defaulting to <workspace>/.pty0);
// serialPort is the shared UDP endpoint the compute task's -serial fragment
// also targets.
func NewSerialTask(name string, priority int, pidFile, logPath, solDevice, workspace string, serialPort int) *SerialTask {
	return &SerialTask{
		Task:        NewTask(name, priority, pidFile, logPath, serialComponent),
		relayBinary: DefaultRelayBinary,
		solDevice:   solDevice,
		workspace:   workspace,
		serialPort:  serialPort,
	}
}

// Precheck verifies the relay binary is on PATH and that either sol_device
// or a workspace is defined (spec.md §4.8).
func (st *SerialTask) Precheck() error {
	if _, err := exec.LookPath(st.relayBinary); err != nil {
		return nodeerr.CommandNotFoundf(serialComponent, "%s not found on PATH", st.relayBinary)
	}
	if st.solDevice == "" && st.workspace == "" {
		return nodeerr.ArgsIncorrectf(serialComponent, "either sol_device or workspace must be set")
	}

	// Confirm the host's PTY subsystem is actually usable before handing
	// the link path to the relay binary -- a cheap allocate-and-close probe
	// using the same kr/pty package the teacher uses to start interactive
	// consoles (cmd/minimega/container.go, pty.Start).
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nodeerr.CommandFailedf(serialComponent, err, "host does not support pseudo-terminal allocation")
	}
	ptmx.Close()
	tty.Close()

	return nil
}

// resolveSolDevice returns the effective SOL link path (spec.md §3, §4.8:
// default <workspace>/.pty0).
func (st *SerialTask) resolveSolDevice() string {
	if st.solDevice != "" {
		return st.solDevice
	}
	return st.workspace + "/.pty0"
}

// GetCommandLine builds the relay invocation (spec.md §4.8).
func (st *SerialTask) GetCommandLine() (string, error) {
	return fmt.Sprintf("%s pty,link=%s,waitslave udp-listen:%d,reuseaddr", st.relayBinary, st.resolveSolDevice(), st.serialPort), nil
}
