package element

import (
	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const memoryComponent = "model:memory"

// Memory models the VM's RAM size (spec.md §4.4). Required: size (MiB).
type Memory struct {
	size int
}

var _ Element = (*Memory)(nil)

// NewMemory returns a Memory element for desc.
func NewMemory(desc descriptor.Memory) *Memory {
	return &Memory{size: desc.Size}
}

func (m *Memory) Init() error {
	return nil
}

func (m *Memory) Precheck() error {
	if m.size <= 0 {
		return nodeerr.ArgsIncorrectf(memoryComponent, "size required and must be positive, got %d", m.size)
	}
	return nil
}

func (m *Memory) Render(out *optargs.Builder) error {
	out.Addf("-m %d", m.size)
	return nil
}
