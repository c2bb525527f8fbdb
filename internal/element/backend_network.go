package element

import (
	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/optargs"
)

// BackendNetwork is the ordered sequence of NIC descriptors, rendered in
// order (spec.md §3 Compute descriptor, §4.4 Network).
type BackendNetwork struct {
	descs    []descriptor.Network
	networks []*Network
}

var _ Element = (*BackendNetwork)(nil)

// NewBackendNetwork returns a BackendNetwork element for the ordered NIC
// descriptors.
func NewBackendNetwork(descs []descriptor.Network) *BackendNetwork {
	return &BackendNetwork{descs: descs}
}

func (bn *BackendNetwork) Init() error {
	bn.networks = make([]*Network, 0, len(bn.descs))
	for i, d := range bn.descs {
		n := NewNetwork(d, i)
		if err := n.Init(); err != nil {
			return err
		}
		bn.networks = append(bn.networks, n)
	}
	return nil
}

func (bn *BackendNetwork) Precheck() error {
	for _, n := range bn.networks {
		if err := n.Precheck(); err != nil {
			return err
		}
	}
	return nil
}

func (bn *BackendNetwork) Render(out *optargs.Builder) error {
	for _, n := range bn.networks {
		if err := n.Render(out); err != nil {
			return err
		}
	}
	return nil
}

// Networks returns the initialized Network elements, e.g. for MAC
// uniqueness checks.
func (bn *BackendNetwork) Networks() []*Network {
	return bn.networks
}
