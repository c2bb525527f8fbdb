// nodesimd-vmm is invoked by the rendered startcmd/stopcmd/resetcmd shell
// scripts (spec.md §6 Script templates) with the staged node-descriptor
// path. It builds the compute task's element tree into a VMM invocation
// and execs it in place, so the resulting process's pid is the one the
// compute task observes via its pid file (Design Notes "Run-mask role":
// the BMC simulator's startcmd script, not the compute task, is what
// actually spawns the VMM).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/mattn/go-shellwords"

	"github.com/infrasim/nodesim/internal/descriptor"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/node"
)

var (
	f_config = flag.String("config", "", "path to the staged node descriptor YAML file")
	f_stop   = flag.Bool("stop", false, "terminate the running VMM instead of starting it")
	f_reset  = flag.Bool("reset", false, "terminate and restart the running VMM")
)

func main() {
	flag.Parse()
	log.AddLogger("stderr", os.Stderr, log.INFO)

	if *f_config == "" {
		fmt.Fprintln(os.Stderr, "usage: nodesimd-vmm -config <node.yml> [-stop|-reset]")
		os.Exit(1)
	}

	desc, err := descriptor.Load(*f_config)
	if err != nil {
		log.Fatal("loading node descriptor: %v", err)
	}

	orch, err := node.New(desc)
	if err != nil {
		log.Fatal("constructing orchestrator: %v", err)
	}
	if err := orch.Init(); err != nil {
		log.Fatal("initializing tasks: %v", err)
	}

	pidFile := orch.Workspace().PidFile("compute")

	if *f_stop || *f_reset {
		terminateVMM(pidFile)
		if !*f_reset {
			return
		}
	}

	cmd, err := orch.ComputeCommandLine()
	if err != nil {
		log.Fatal("building VMM command line: %v", err)
	}

	execVMM(pidFile, cmd)
}

func terminateVMM(pidFile string) {
	b, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}
	var pid int
	fmt.Sscanf(string(b), "%d", &pid)
	if pid > 0 {
		syscall.Kill(pid, syscall.SIGTERM)
	}
	os.Remove(pidFile)
}

// execVMM replaces the current process image with the VMM binary, after
// writing this process's own pid to pidFile -- exec preserves the pid, so
// the compute task's poll of pidFile observes the real VMM process.
func execVMM(pidFile, cmd string) {
	tokens, err := shellwords.Parse(cmd)
	if err != nil || len(tokens) == 0 {
		log.Fatal("could not tokenize VMM command %q: %v", cmd, err)
	}

	path, err := exec.LookPath(tokens[0])
	if err != nil {
		log.Fatal("%s not found on PATH", tokens[0])
	}

	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
		log.Fatal("could not write pid file %s: %v", pidFile, err)
	}

	if err := syscall.Exec(path, tokens, os.Environ()); err != nil {
		log.Fatal("exec %q: %v", cmd, err)
	}
}
