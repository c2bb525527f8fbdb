package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/element"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/numa"
	"github.com/infrasim/nodesim/internal/optargs"
)

const computeComponent = "task:compute"

// DefaultVMMBinary mirrors the original source's qemu_bin default.
const DefaultVMMBinary = "qemu-system-x86_64"

const monitorPort = 2345

// ComputeTask is the concrete supervisor for the VMM (spec.md §4.6). It
// never spawns its own child -- the BMC's startcmd script does -- so it is
// always constructed with RunMask set.
type ComputeTask struct {
	*Task

	nodeType string
	workspaceRoot string
	homeDir  string

	desc        descriptor.Compute
	ipmiHost    string
	ipmiPort    int
	serialPort  int

	vmmBinary string
	numaAlloc *numa.Allocator
}

// NewComputeTask returns a compute task. nodeType selects the vendor
// SMBIOS-asset namespace; ipmiHost/ipmiPort/serialPort are the shared
// endpoint values the orchestrator fans out to every consumer.
func NewComputeTask(name string, priority int, pidFile, logPath, workspaceRoot, homeDir, nodeType string, desc descriptor.Compute, ipmiHost string, ipmiPort, serialPort int) *ComputeTask {
	ct := &ComputeTask{
		Task:          NewTask(name, priority, pidFile, logPath, computeComponent),
		nodeType:      nodeType,
		workspaceRoot: workspaceRoot,
		homeDir:       homeDir,
		desc:          desc,
		ipmiHost:      ipmiHost,
		ipmiPort:      ipmiPort,
		serialPort:    serialPort,
		vmmBinary:     DefaultVMMBinary,
	}
	ct.RunMask = true
	return ct
}

// SetNumaAllocator attaches a NUMA allocator; if nil, no CPU pinning prefix
// is emitted (spec.md §3 invariant: "NUMA pinning is attempted only when
// the host utility exists").
func (ct *ComputeTask) SetNumaAllocator(a *numa.Allocator) {
	ct.numaAlloc = a
}

// resolveSmbios implements the spec.md §4.6 resolution order: explicit
// compute.smbios, else <workspace>/data/<type>_smbios.bin, else
// /usr/local/etc/infrasim/<type>/<type>_smbios.bin.
func (ct *ComputeTask) resolveSmbios() string {
	if ct.desc.Smbios != "" {
		return ct.desc.Smbios
	}
	staged := filepath.Join(ct.workspaceRoot, "data", ct.nodeType+"_smbios.bin")
	if _, err := os.Stat(staged); err == nil {
		return staged
	}
	return filepath.Join("/usr/local/etc/infrasim", ct.nodeType, ct.nodeType+"_smbios.bin")
}

func (ct *ComputeTask) resolveKvm() bool {
	if !ct.desc.KvmEnabled {
		return false
	}
	if _, err := os.Stat("/dev/kvm"); err != nil {
		log.Named(computeComponent).Warn("kvm_enabled requested but /dev/kvm is unavailable, downgrading to off")
		return false
	}
	return true
}

// GetCommandLine builds the full VMM invocation: an optional numactl
// pinning prefix, the VMM binary, the task's own base fragments, and the
// element tree's rendered fragments, in that order (spec.md §4.6).
func (ct *ComputeTask) GetCommandLine() (string, error) {
	elements := []element.Element{
		element.NewCPU(ct.desc.CPU),
		element.NewMemory(ct.desc.Memory),
		element.NewBackendStorage(ct.desc.StorageBackend, ct.homeDir),
		element.NewBackendNetwork(ct.desc.Networks),
		element.NewIPMI(ct.ipmiHost, ct.ipmiPort),
	}

	for _, e := range elements {
		if err := e.Init(); err != nil {
			return "", err
		}
	}
	for _, e := range elements {
		if err := e.Precheck(); err != nil {
			return "", err
		}
	}

	childArgs := optargs.New(computeComponent)
	for _, e := range elements {
		if err := e.Render(childArgs); err != nil {
			return "", err
		}
	}
	childCmd, err := childArgs.Render()
	if err != nil {
		return "", err
	}

	base := optargs.New(computeComponent)
	base.Add("-vnc :1")
	base.Addf("-name %s", ct.Name)
	base.Add("-device sga")

	if ct.resolveKvm() {
		base.Add("--enable-kvm")
	}

	if smbios := ct.resolveSmbios(); smbios != "" {
		base.Addf("-smbios file=%s", smbios)
	}
	if ct.desc.Bios != "" {
		base.Addf("-bios %s", ct.desc.Bios)
	}
	if ct.desc.BootOrder != "" {
		base.Addf("-boot %s", ct.desc.BootOrder)
	}

	base.Add("-machine q35,usb=off,vmport=off")

	if ct.desc.Cdrom != "" {
		base.Addf("-cdrom %s", ct.desc.Cdrom)
	}

	base.Addf("-chardev socket,id=mon,host=127.0.0.1,port=%d,server,nowait", monitorPort)
	base.Add("-mon chardev=mon,id=monitor")

	if ct.serialPort != 0 {
		base.Addf("-serial mon:udp:127.0.0.1:%d,nowait", ct.serialPort)
	}

	base.Addf("-uuid %s", uuid.New().String())

	baseCmd, err := base.Render()
	if err != nil {
		return "", err
	}

	cmd := fmt.Sprintf("%s %s %s", ct.vmmBinary, baseCmd, childCmd)

	if ct.numaAlloc != nil {
		if cpus := ct.numaAlloc.Take(cpuQuantities(ct.desc.CPU)); len(cpus) > 0 {
			cmd = fmt.Sprintf("numactl --physcpubind=%s --localalloc %s", joinInts(cpus), cmd)
		}
	}

	return cmd, nil
}

func cpuQuantities(c descriptor.CPU) int {
	if c.Quantities > 0 {
		return c.Quantities
	}
	return 2
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
