package descriptor

import (
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/infrasim/nodesim/internal/nodeerr"
)

const component = "descriptor"

// Default endpoint ports, shared fan-out values (spec.md §5).
const (
	DefaultBmcConnectionPort = 9002
	DefaultIpmiConsolePort   = 9000
	DefaultSerialPort        = 9003
	DefaultIpmiOverLanPort   = 623
)

// Load reads and parses a node descriptor from a YAML file, applying
// defaults (spec.md §3).
func Load(path string) (*Node, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, nodeerr.ArgsIncorrectf(component, "could not read node descriptor %s: %v", path, err)
	}
	return Parse(b)
}

// Parse parses a node descriptor from YAML bytes, applying defaults.
func Parse(b []byte) (*Node, error) {
	var n Node
	if err := yaml.Unmarshal(b, &n); err != nil {
		return nil, nodeerr.ArgsIncorrectf(component, "invalid node descriptor: %v", err)
	}
	n.ApplyDefaults()
	return &n, nil
}

// ApplyDefaults fills in the node descriptor's defaults (name, ports, CPU
// sockets and features, default drive cache, bridge name).
func (n *Node) ApplyDefaults() {
	if n.Name == "" {
		n.Name = "node-0"
	}
	if n.BmcConnectionPort == 0 {
		n.BmcConnectionPort = DefaultBmcConnectionPort
	}
	if n.IpmiConsolePort == 0 {
		n.IpmiConsolePort = DefaultIpmiConsolePort
	}
	if n.SerialPort == 0 {
		n.SerialPort = DefaultSerialPort
	}

	n.Compute.applyDefaults()

	if n.BMC != nil {
		n.BMC.applyDefaults()
	}
}

func (c *Compute) applyDefaults() {
	c.CPU.applyDefaults()

	for i := range c.StorageBackend {
		c.StorageBackend[i].applyDefaults()
	}
	for i := range c.Networks {
		c.Networks[i].applyDefaults()
	}
}

func (c *CPU) applyDefaults() {
	if c.Type == "" {
		c.Type = "host"
	}
	if len(c.Features) == 0 {
		c.Features = []string{"+vmx"}
	}
	if c.Quantities == 0 {
		c.Quantities = 2
	}
	if c.Sockets == 0 {
		c.Sockets = 2
	}
}

func (ctl *Controller) applyDefaults() {
	for i := range ctl.Drives {
		ctl.Drives[i].applyDefaults()
	}
}

func (d *Drive) applyDefaults() {
	if d.Cache == "" {
		d.Cache = "writeback"
	}
}

func (net *Network) applyDefaults() {
	if net.NetworkName == "" && net.NetworkMode == "bridge" {
		net.NetworkName = "br0"
	}
}

func (b *BMC) applyDefaults() {
	if b.IpmiOverLanPort == 0 {
		b.IpmiOverLanPort = DefaultIpmiOverLanPort
	}
}

// Validate checks the top-level invariant the node descriptor itself owns
// (type presence; a missing name is defaulted by ApplyDefaults, not
// rejected here); per-element and per-task invariants are checked by their
// own precheck steps.
func (n *Node) Validate() error {
	if n.Type == "" {
		return nodeerr.ArgsIncorrectf(component, "type is required")
	}
	return nil
}

// Save writes the node descriptor as YAML to path, in the same encoding as
// the workspace snapshot at data/infrasim.yml (spec.md §4.9), which
// node.Orchestrator.MaterializeWorkspace produces with its own yaml.Marshal
// call.
func (n *Node) Save(path string) error {
	b, err := yaml.Marshal(n)
	if err != nil {
		return nodeerr.Internalf(component, "could not marshal node descriptor: %v", err)
	}
	return os.WriteFile(path, b, 0644)
}
