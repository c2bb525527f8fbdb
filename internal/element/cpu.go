package element

import (
	"strings"

	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const cpuComponent = "model:cpu"

// CPU models the vCPU topology (spec.md §4.4). Defaults:
// type=host, features=+vmx, quantities=2, sockets=2.
type CPU struct {
	desc descriptor.CPU

	typ        string
	features   []string
	quantities int
	sockets    int
}

var _ Element = (*CPU)(nil)

// NewCPU returns a CPU element for desc; call Init before Render.
func NewCPU(desc descriptor.CPU) *CPU {
	return &CPU{desc: desc}
}

func (c *CPU) Init() error {
	c.typ = c.desc.Type
	if c.typ == "" {
		c.typ = "host"
	}

	c.features = c.desc.Features
	if len(c.features) == 0 {
		c.features = []string{"+vmx"}
	}

	c.quantities = c.desc.Quantities
	if c.quantities == 0 {
		c.quantities = 2
	}

	c.sockets = c.desc.Sockets
	if c.sockets == 0 {
		c.sockets = 2
	}

	return nil
}

func (c *CPU) Precheck() error {
	if c.quantities <= 0 {
		return nodeerr.ArgsIncorrectf(cpuComponent, "quantities invalid: %d", c.quantities)
	}
	if c.sockets <= 0 {
		return nodeerr.ArgsIncorrectf(cpuComponent, "sockets invalid: %d", c.sockets)
	}
	if c.quantities%c.sockets != 0 {
		return nodeerr.ArgsIncorrectf(cpuComponent, "quantities %d not divisible by sockets %d", c.quantities, c.sockets)
	}
	return nil
}

func (c *CPU) Render(out *optargs.Builder) error {
	cpuFrag := c.typ
	if len(c.features) > 0 {
		cpuFrag += "," + strings.Join(c.features, ",")
	}
	out.Addf("-cpu %s", cpuFrag)

	cores := c.quantities / c.sockets
	out.Addf("-smp %d,sockets=%d,cores=%d,threads=1", c.quantities, c.sockets, cores)

	return nil
}
