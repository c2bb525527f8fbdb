// Package numa vends CPU-id lists for pinning a VM's vCPUs to a single NUMA
// node when possible, by parsing the host's numactl output (spec.md §4.3).
// It generalizes the teacher's taskset-based affinity.go: where the teacher
// assigns one CPU at a time from a flat pool (addAffinity), the allocator
// here groups the pool by NUMA node so a caller can request n CPUs that
// share a node.
package numa

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/infrasim/nodesim/internal/command"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
)

const component = "numa"

// Allocator vends CPU-id lists from the host's NUMA topology. It is not
// thread-safe: the spec's single-threaded engine is its only caller.
type Allocator struct {
	// order preserves node enumeration order for the drain-in-order
	// fallback.
	order []int
	// free holds the CPUs still available per NUMA node, consumed by Take.
	free map[int][]int
}

// Available reports whether the host NUMA control utility exists at all;
// pinning is attempted only when it does (spec.md §3 invariants).
func Available() bool {
	_, err := command.Run(component, "which numactl")
	return err == nil
}

// New constructs an Allocator by running numactl --show (for the allowed
// CPU list) and numactl --hardware (for the per-node CPU lists).
func New() (*Allocator, error) {
	show, err := command.Run(component, "numactl --show")
	if err != nil {
		return nil, nodeerr.CommandFailedf(component, err, "numactl --show failed")
	}

	allowed, err := parsePhysCPUBind(show)
	if err != nil {
		return nil, err
	}

	hw, err := command.Run(component, "numactl --hardware")
	if err != nil {
		return nil, nodeerr.CommandFailedf(component, err, "numactl --hardware failed")
	}

	nodeCPUs, order, err := parseNodeCPUs(hw)
	if err != nil {
		return nil, err
	}

	a := &Allocator{order: order, free: make(map[int][]int, len(nodeCPUs))}

	allowedSet := make(map[int]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	for _, node := range order {
		var filtered []int
		for _, cpu := range nodeCPUs[node] {
			if len(allowedSet) == 0 || allowedSet[cpu] {
				filtered = append(filtered, cpu)
			}
		}
		a.free[node] = filtered
	}

	return a, nil
}

var physCPUBindRE = regexp.MustCompile(`(?m)^physcpubind:\s*(.*)$`)

func parsePhysCPUBind(show string) ([]int, error) {
	m := physCPUBindRE.FindStringSubmatch(show)
	if m == nil {
		// Some numactl builds omit physcpubind when unrestricted; treat as
		// "everything allowed".
		return nil, nil
	}
	return parseCPUList(m[1])
}

var nodeCPUsRE = regexp.MustCompile(`(?m)^node (\d+) cpus:\s*(.*)$`)

func parseNodeCPUs(hw string) (map[int][]int, []int, error) {
	matches := nodeCPUsRE.FindAllStringSubmatch(hw, -1)
	if len(matches) == 0 {
		return nil, nil, nodeerr.Internalf(component, "corrupt numactl --hardware output: no \"node N cpus:\" lines")
	}

	nodeCPUs := make(map[int][]int, len(matches))
	var order []int

	for _, m := range matches {
		node, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, nil, nodeerr.Internalf(component, "corrupt numactl --hardware output: invalid node id %q", m[1])
		}
		cpus, err := parseCPUList(m[2])
		if err != nil {
			return nil, nil, err
		}
		nodeCPUs[node] = cpus
		order = append(order, node)
	}

	return nodeCPUs, order, nil
}

func parseCPUList(s string) ([]int, error) {
	fields := strings.Fields(s)
	cpus := make([]int, 0, len(fields))
	for _, f := range fields {
		c, err := strconv.Atoi(f)
		if err != nil {
			return nil, nodeerr.Internalf(component, "corrupt numactl CPU list entry %q", f)
		}
		cpus = append(cpus, c)
	}
	return cpus, nil
}

// Take returns up to n CPU-ids, preferring a single NUMA node whose free
// list is sufficient; otherwise it drains nodes in enumeration order and
// returns up to n. Taken CPUs are consumed, not returned.
func (a *Allocator) Take(n int) []int {
	if n <= 0 {
		return nil
	}

	for _, node := range a.order {
		if len(a.free[node]) >= n {
			taken := a.free[node][:n]
			a.free[node] = a.free[node][n:]
			return append([]int(nil), taken...)
		}
	}

	log.Named(component).Warn("no single NUMA node has %d free CPUs, draining nodes in order", n)

	var taken []int
	for _, node := range a.order {
		for len(taken) < n && len(a.free[node]) > 0 {
			taken = append(taken, a.free[node][0])
			a.free[node] = a.free[node][1:]
		}
		if len(taken) == n {
			break
		}
	}

	return taken
}
