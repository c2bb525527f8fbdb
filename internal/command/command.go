// Package command implements the process utilities the supervisor uses to
// spawn detached children, probe their liveness, and run synchronous
// commands (spec.md §4.2). Tokenization follows POSIX shell rules via
// mattn/go-shellwords, the same library lima-vm/lima's QEMU driver reaches
// for when it needs to split a user-supplied command string; liveness is
// probed against /proc the way the teacher's proc.go reads process state
// with c9s/goprocinfo.
package command

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	proc "github.com/c9s/goprocinfo/linux"
	"github.com/mattn/go-shellwords"

	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
)

// stderrDrainDelay is how long spawn-detached waits after fork+exec before
// draining early stderr and probing liveness (spec.md §5).
var stderrDrainDelay = time.Second

// SpawnDetached tokenizes cmd by POSIX shell rules, launches it without a
// shell, and verifies the child is alive by probing /proc/<pid>. Early
// stderr output is drained to logPath if given, else to the system log.
// Returns the child's pid, or CommandFailed if the liveness probe fails.
func SpawnDetached(component, cmd, logPath string) (int, error) {
	tokens, err := shellwords.Parse(cmd)
	if err != nil {
		return 0, nodeerr.ArgsIncorrectf(component, "could not tokenize command %q: %v", cmd, err)
	}
	if len(tokens) == 0 {
		return 0, nodeerr.ArgsIncorrectf(component, "empty command")
	}

	path, err := exec.LookPath(tokens[0])
	if err != nil {
		return 0, nodeerr.CommandNotFoundf(component, "%s not found on PATH", tokens[0])
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return 0, nodeerr.CommandFailedf(component, err, "could not create stderr pipe")
	}

	child := &exec.Cmd{
		Path:   path,
		Args:   tokens,
		Stderr: stderrW,
	}

	if err := child.Start(); err != nil {
		stderrR.Close()
		stderrW.Close()
		return 0, nodeerr.CommandFailedf(component, err, "could not start %q", cmd)
	}
	stderrW.Close()

	pid := child.Process.Pid

	// Reap the child asynchronously once it exits so it doesn't become a
	// zombie; the supervisor tracks liveness via the pid file, not via Wait.
	go child.Wait()

	go drainStderr(stderrR, logPath)

	time.Sleep(stderrDrainDelay)

	if !IsAlive(pid) {
		return 0, nodeerr.CommandFailedf(component, nil, "SpawnFailed: %s exited within the liveness window", cmd)
	}

	log.Named(component).Info("spawned %q as pid %v", cmd, pid)

	return pid, nil
}

func drainStderr(r io.Reader, logPath string) {
	defer func() {
		if rc, ok := r.(io.Closer); ok {
			rc.Close()
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return
	}
	if buf.Len() == 0 {
		return
	}

	if logPath == "" {
		log.Warn("early stderr: %s", buf.String())
		return
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Warn("could not create log dir for %s: %v", logPath, err)
		return
	}

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		log.Warn("could not open log file %s: %v", logPath, err)
		return
	}
	defer f.Close()

	f.Write(buf.Bytes())
}

// Run executes cmd synchronously via POSIX shell tokenization and returns
// its stdout. A non-zero exit propagates as CommandFailed.
func Run(component, cmd string) (string, error) {
	tokens, err := shellwords.Parse(cmd)
	if err != nil {
		return "", nodeerr.ArgsIncorrectf(component, "could not tokenize command %q: %v", cmd, err)
	}
	if len(tokens) == 0 {
		return "", nodeerr.ArgsIncorrectf(component, "empty command")
	}

	path, err := exec.LookPath(tokens[0])
	if err != nil {
		return "", nodeerr.CommandNotFoundf(component, "%s not found on PATH", tokens[0])
	}

	var stdout, stderr bytes.Buffer
	c := &exec.Cmd{
		Path:   path,
		Args:   tokens,
		Stdout: &stdout,
		Stderr: &stderr,
	}

	if err := c.Run(); err != nil {
		return "", nodeerr.CommandFailedf(component, err, "%s: %s", cmd, stderr.String())
	}

	return stdout.String(), nil
}

// IsAlive reports whether /proc/<pid> exists, i.e. whether the process is
// still running.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if _, err := proc.ReadProcessStat(filepath.Join("/proc", strconv.Itoa(pid), "stat")); err != nil {
		return false
	}
	return true
}

// Kill sends sig to pid, returning nil if the process is already gone.
func Kill(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) && !os.IsNotExist(err) {
		return err
	}
	return nil
}
