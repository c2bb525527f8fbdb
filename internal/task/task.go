// Package task implements the process supervisor base and its three
// concrete tasks (compute, BMC, serial bridge) that together make up one
// node's process group (spec.md §4.5-§4.8).
package task

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/infrasim/nodesim/internal/command"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
)

// runMaskPollInterval and runMaskPollTimeout bound how long a run-masked
// task polls for an externally created pid file (spec.md §4.5, §5). Vars,
// not consts, so tests can shrink the timeout (command.stderrDrainDelay
// follows the same pattern).
var (
	runMaskPollInterval = 100 * time.Millisecond
	runMaskPollTimeout  = 5 * time.Second
	terminateGrace      = time.Second
)

// CommandLiner is implemented by every concrete task: it builds the final
// argv string the supervisor spawns.
type CommandLiner interface {
	GetCommandLine() (string, error)
}

// Task is the abstract supervisor base for one long-running child process
// (spec.md §4.5). Priority 0 is highest (started first, stopped last).
type Task struct {
	Name     string
	Priority int
	PidFile  string
	LogPath  string
	Debug    bool
	// RunMask, when set, means this task never spawns its own child: it
	// only polls for a pid file written by another task's process (spec.md
	// Design Notes "Run-mask role" -- the compute task's sole runtime
	// responsibility when the BMC simulator's startcmd script is what
	// actually spawns the VMM).
	RunMask bool

	component string
}

// NewTask constructs a Task base. component tags log/error messages, e.g.
// "task:compute".
func NewTask(name string, priority int, pidFile, logPath string, component string) *Task {
	return &Task{Name: name, Priority: priority, PidFile: pidFile, LogPath: logPath, component: component}
}

// Run executes the task's lifecycle per spec.md §4.5:
//   - RunMask: poll for an externally created pid file for up to 5s, never
//     spawn.
//   - Debug: print the command and return without spawning.
//   - Otherwise: if already running, report so; if the pid file is stale,
//     clean it up; then spawn and persist the new pid.
func (t *Task) Run(cl CommandLiner) error {
	if t.RunMask {
		return t.waitForExternalPid()
	}

	cmd, err := cl.GetCommandLine()
	if err != nil {
		return err
	}

	if t.Debug {
		log.Named(t.component).Info("debug: %s", cmd)
		return nil
	}

	if pid, ok := t.readPid(); ok {
		if command.IsAlive(pid) {
			log.Named(t.component).Info("%s already running as pid %d", t.Name, pid)
			return nil
		}
		log.Named(t.component).Warn("removing stale pid file for %s (pid %d not alive)", t.Name, pid)
		os.Remove(t.PidFile)
	}

	pid, err := command.SpawnDetached(t.component, cmd, t.LogPath)
	if err != nil {
		return err
	}

	if err := os.WriteFile(t.PidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return nodeerr.Internalf(t.component, "could not persist pid file %s: %v", t.PidFile, err)
	}

	return nil
}

// waitForExternalPid polls for the pid file an external process is
// expected to create (spec.md §4.5 run-mask path).
func (t *Task) waitForExternalPid() error {
	deadline := time.Now().Add(runMaskPollTimeout)
	for {
		if pid, ok := t.readPid(); ok && command.IsAlive(pid) {
			log.Named(t.component).Info("%s observed running as pid %d", t.Name, pid)
			return nil
		}
		if time.Now().After(deadline) {
			log.Named(t.component).Warn("%s: no pid file observed after %s", t.Name, runMaskPollTimeout)
			return nil
		}
		time.Sleep(runMaskPollInterval)
	}
}

// Terminate sends SIGTERM to the pid on file, waits briefly, and removes
// the pid file. A missing process is non-fatal (spec.md §4.5).
func (t *Task) Terminate() error {
	pid, ok := t.readPid()
	if !ok {
		return nil
	}

	if err := command.Kill(pid, syscall.SIGTERM); err != nil {
		log.Named(t.component).Warn("could not signal %s (pid %d): %v", t.Name, pid, err)
	}

	time.Sleep(terminateGrace)

	os.Remove(t.PidFile)
	return nil
}

// Status reports whether the task is running, cross-checking the pid file
// against /proc and opportunistically cleaning up a stale pid file (spec.md
// §4.5, §8 invariant 7).
func (t *Task) Status() bool {
	pid, ok := t.readPid()
	if !ok {
		return false
	}
	if command.IsAlive(pid) {
		return true
	}
	os.Remove(t.PidFile)
	return false
}

// readPid reads and parses the pid file, returning ok=false if it is
// missing or unparsable.
func (t *Task) readPid() (int, bool) {
	b, err := os.ReadFile(t.PidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, false
	}
	return pid, true
}
