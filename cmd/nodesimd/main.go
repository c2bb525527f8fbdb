// nodesimd is the minimal descriptor-path-to-orchestrator driver: given a
// node descriptor YAML file and a subcommand, it materializes the
// workspace and starts, stops, or reports the status of the node's task
// group (spec.md §4.9). It is not a flag/subcommand CLI surface -- the
// user-facing wrapper is out of scope (spec.md §1) -- just enough of a
// binary to drive the orchestrator end to end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/infrasim/nodesim/internal/descriptor"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/node"
)

var (
	f_config = flag.String("config", "", "path to the node descriptor YAML file")
	f_level  = flag.String("level", "info", "log level: debug, info, warn, error")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s -config <node.yml> {start|stop|status}\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level, err := log.ParseLevel(*f_level)
	if err != nil {
		level = log.INFO
	}
	log.AddLogger("stderr", os.Stderr, level)

	args := flag.Args()
	if *f_config == "" || len(args) != 1 {
		usage()
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

	if err := orch.MaterializeWorkspace(); err != nil {
		log.Fatal("materializing workspace: %v", err)
	}

	if err := orch.Init(); err != nil {
		log.Fatal("initializing tasks: %v", err)
	}

	switch args[0] {
	case "start":
		if err := orch.Start(); err != nil {
			log.Fatal("starting node %s: %v", desc.Name, err)
		}
	case "stop":
		orch.Stop()
	case "status":
		for name, running := range orch.Status() {
			state := "stopped"
			if running {
				state = "running"
			}
			fmt.Printf("%s: %s\n", name, state)
		}
	default:
		usage()
		os.Exit(1)
	}
}
