// Package node implements the Node orchestrator (spec.md §4.9): it
// materializes the per-node workspace, instantiates the three tasks
// (serial bridge, BMC, compute), wires the shared endpoint values out to
// every task that consumes them, and starts/stops/status-checks them in
// priority order.
package node

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/infrasim/nodesim/internal/descriptor"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/numa"
	"github.com/infrasim/nodesim/internal/task"
	"github.com/infrasim/nodesim/internal/workspace"
)

const component = "node"

// Task priorities (spec.md §2, §4.9): serial bridge starts first and stops
// last, compute starts last and stops first.
const (
	PrioritySerial  = 0
	PriorityBMC     = 1
	PriorityCompute = 2
)

// Default IPMI host the VMM dials to reach the BMC simulator's TCP socket
// (spec.md §4.4 IPMI wiring).
const defaultIPMIHost = "127.0.0.1"

// Orchestrator is the Node orchestrator for one node descriptor.
type Orchestrator struct {
	desc *descriptor.Node
	ws   *workspace.Workspace

	serial  *task.SerialTask
	bmc     *task.BMCTask
	compute *task.ComputeTask
}

// New constructs an Orchestrator for desc. It applies defaults and
// validates the node-level invariants, but performs no I/O: call
// MaterializeWorkspace then Init before Start.
func New(desc *descriptor.Node) (*Orchestrator, error) {
	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.New(desc.Name)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{desc: desc, ws: ws}, nil
}

// Workspace returns the node's materialized workspace.
func (o *Orchestrator) Workspace() *workspace.Workspace { return o.ws }

// ComputeCommandLine builds the full VMM invocation for this node's compute
// task (spec.md §4.6). Used by the nodesimd-vmm helper the BMC's startcmd
// script execs, since the compute task itself is run-masked and never
// spawns its own child.
func (o *Orchestrator) ComputeCommandLine() (string, error) {
	return o.compute.GetCommandLine()
}

// bmcDescriptor returns the node's BMC descriptor, defaulted to a zero
// value when bmc is absent from the document (spec.md §3: bmc is
// optional, but the orchestrator always builds three tasks, §4.9).
func (o *Orchestrator) bmcDescriptor() descriptor.BMC {
	if o.desc.BMC == nil {
		var b descriptor.BMC
		b.IpmiOverLanPort = descriptor.DefaultIpmiOverLanPort
		return b
	}
	return *o.desc.BMC
}

// solDevice resolves the shared SOL pseudo-terminal path: node.sol_device,
// else bmc.sol_device, else <workspace>/.pty0 (spec.md §3, §4.8).
func (o *Orchestrator) solDevice() string {
	if o.desc.SolDevice != "" {
		return o.desc.SolDevice
	}
	if o.desc.BMC != nil && o.desc.BMC.SolDevice != "" {
		return o.desc.BMC.SolDevice
	}
	return o.ws.PtyPath()
}

// MaterializeWorkspace creates the on-disk workspace, stages the node
// descriptor snapshot, and renders the BMC config and scripts (spec.md
// §4.9 materialize-workspace). It is idempotent (spec.md §8 invariant 6).
func (o *Orchestrator) MaterializeWorkspace() error {
	snapshot, err := yaml.Marshal(o.desc)
	if err != nil {
		return nodeerr.Internalf(component, "could not marshal node descriptor: %v", err)
	}

	bmcDesc := o.bmcDescriptor()
	params := workspace.BMCConfigParams{
		StartCmdScript:       firstNonEmpty(bmcDesc.StartCmd, o.ws.StartCmdScript()),
		ChassisControlScript: firstNonEmpty(bmcDesc.ChassisControl, o.ws.ChassisControlScript()),
		LanControlScript:     firstNonEmpty(bmcDesc.LanControl, o.ws.LanControlScript()),
		LanInterface:         bmcDesc.Interface,
		Username:             bmcDesc.Username,
		Password:             bmcDesc.Password,
		PortQemuIpmi:         o.desc.BmcConnectionPort,
		PortIpmiConsole:      o.desc.IpmiConsolePort,
		PortIol:              bmcDesc.IpmiOverLanPort,
		SolDevice:            o.solDevice(),
		PoweroffWait:         bmcDesc.PoweroffWait,
		KillWait:             bmcDesc.KillWait,
		StartNow:             bmcDesc.StartNow,
		HistoryFru:           bmcDesc.HistoryFru,
	}

	smbiosSrc := ""
	if o.desc.Compute.Smbios == "" {
		smbiosSrc = filepath.Join("/usr/local/etc/infrasim", o.desc.Type, o.desc.Type+"_smbios.bin")
	}
	emuSrc := bmcDesc.EmuFile
	if emuSrc == "" {
		emuSrc = filepath.Join("/usr/local/etc/infrasim", o.desc.Type, o.desc.Type+".emu")
	}

	return o.ws.Materialize(snapshot, params, bmcDesc.ConfigFile, smbiosSrc, emuSrc, o.ws.PidFile("compute"))
}

// TerminateWorkspace deletes the workspace directory (spec.md §4.9
// terminate-workspace).
func (o *Orchestrator) TerminateWorkspace() error {
	return o.ws.Terminate()
}

// Init builds the three tasks with priorities serial=0, bmc=1, compute=2,
// and fans the shared endpoint overrides out to every consumer (spec.md
// §4.9). It does not build the compute element tree: ComputeTask's
// GetCommandLine initializes, prechecks and renders the elements each time
// the VMM command line is built. The compute task is constructed
// with RunMask set: the BMC simulator's startcmd script is what actually
// spawns the VMM process (Design Notes "Run-mask role").
func (o *Orchestrator) Init() error {
	bmcDesc := o.bmcDescriptor()
	sol := o.solDevice()

	o.serial = task.NewSerialTask(
		"serial", PrioritySerial,
		o.ws.PidFile("serial"), filepath.Join(o.ws.LogDir(), "serial.log"),
		sol, o.ws.Root, o.desc.SerialPort,
	)

	o.bmc = task.NewBMCTask(
		"bmc", PriorityBMC,
		o.ws.PidFile("bmc"), filepath.Join(o.ws.LogDir(), "bmc.log"),
		o.desc.Type, bmcDesc, o.ws,
	)
	if err := o.bmc.WriteConfig(o.desc.IpmiConsolePort, o.desc.BmcConnectionPort, bmcDesc.IpmiOverLanPort, sol); err != nil {
		return err
	}

	ipmiHost := o.desc.Compute.IPMI.Host
	if ipmiHost == "" {
		ipmiHost = defaultIPMIHost
	}

	o.compute = task.NewComputeTask(
		"compute", PriorityCompute,
		o.ws.PidFile("compute"), filepath.Join(o.ws.LogDir(), "compute.log"),
		o.ws.Root, o.ws.InfrasimHome(), o.desc.Type,
		o.desc.Compute, ipmiHost, o.desc.BmcConnectionPort, o.desc.SerialPort,
	)

	if o.desc.Compute.NumaControl && numa.Available() {
		alloc, err := numa.New()
		if err != nil {
			log.Named(component).Warn("numa_control requested but numactl output could not be parsed: %v", err)
		} else {
			o.compute.SetNumaAllocator(alloc)
		}
	}

	return nil
}

// orderedTasks returns the three tasks' lifecycle hooks in ascending
// priority order (spec.md §2, §5: start order is serial bridge, BMC,
// compute; Stop reverses this slice for descending stop order).
func (o *Orchestrator) orderedTasks() []taskHandle {
	return []taskHandle{
		{name: "serial", precheck: o.serial.Precheck, run: func() error { return o.serial.Run(o.serial) }, terminate: o.serial.Terminate, status: o.serial.Status},
		{name: "bmc", precheck: func() error { return o.bmc.Precheck(o.bmcDescriptor().IpmiOverLanPort) }, run: func() error { return o.bmc.Run(o.bmc) }, terminate: o.bmc.Terminate, status: o.bmc.Status},
		{name: "compute", precheck: func() error { return nil }, run: func() error { return o.compute.Run(o.compute) }, terminate: o.compute.Terminate, status: o.compute.Status},
	}
}

type taskHandle struct {
	name      string
	precheck  func() error
	run       func() error
	terminate func() error
	status    func() bool
}

// Start runs precheck then run for each task in ascending priority order
// (serial bridge, BMC, compute). Init/precheck errors abort the lifecycle
// without partial startup; a run error stops subsequent tasks from
// starting (spec.md §7 propagation policy).
func (o *Orchestrator) Start() error {
	for _, h := range o.orderedTasks() {
		if err := h.precheck(); err != nil {
			return nodeerr.Wrap(nodeerr.ArgsIncorrect, component, err, "precheck failed for task %s", h.name)
		}
	}

	for _, h := range o.orderedTasks() {
		if err := h.run(); err != nil {
			return fmt.Errorf("starting task %s: %w", h.name, err)
		}
	}

	return nil
}

// Stop terminates each task in descending priority order (compute, BMC,
// serial bridge). Per-task failures are logged but do not abort the
// overall stop sequence (spec.md §7: terminate is best-effort).
func (o *Orchestrator) Stop() {
	handles := o.orderedTasks()
	for i := len(handles) - 1; i >= 0; i-- {
		h := handles[i]
		if err := h.terminate(); err != nil {
			log.Named(component).Warn("terminating task %s: %v", h.name, err)
		}
	}
}

// Status reports each task's running state, keyed by task name.
func (o *Orchestrator) Status() map[string]bool {
	out := make(map[string]bool)
	for _, h := range o.orderedTasks() {
		out[h.name] = h.status()
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
