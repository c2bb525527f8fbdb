package element

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const networkComponent = "model:network"

// DefaultNetworkDevice mirrors the teacher's VM_NET_DRIVER_DEFAULT.
const DefaultNetworkDevice = "e1000"

// macOUI is the fixed locally-administered prefix auto-generated MAC
// addresses use (spec.md §4.4 Network).
const macOUI = "52:54:BE"

// Network models one NIC back-end (spec.md §4.4).
type Network struct {
	index int
	desc  descriptor.Network

	device string
	mac    string
}

var _ Element = (*Network)(nil)

// NewNetwork returns a Network element. index is this NIC's position in the
// backend network sequence, used for netdev<i>/device ids.
func NewNetwork(desc descriptor.Network, index int) *Network {
	return &Network{desc: desc, index: index}
}

func (n *Network) Init() error {
	n.device = n.desc.Device
	if n.device == "" {
		n.device = DefaultNetworkDevice
	}

	n.mac = n.desc.MAC
	if n.mac == "" {
		n.mac = generateMAC()
	}

	return nil
}

// generateMAC takes the last six hex digits of a fresh random UUID and
// joins them to the fixed prefix 52:54:BE (spec.md §4.4 Network).
func generateMAC() string {
	id := uuid.New().String()
	hex := strings.ReplaceAll(id, "-", "")
	suffix := hex[len(hex)-6:]

	return fmt.Sprintf("%s:%s:%s:%s", macOUI, strings.ToUpper(suffix[0:2]), strings.ToUpper(suffix[2:4]), strings.ToUpper(suffix[4:6]))
}

func (n *Network) Precheck() error {
	switch n.desc.NetworkMode {
	case "nat", "bridge":
		return nil
	default:
		return nodeerr.Unsupportedf(networkComponent, "unsupported network mode: %s", n.desc.NetworkMode)
	}
}

func (n *Network) Render(out *optargs.Builder) error {
	switch n.desc.NetworkMode {
	case "bridge":
		name := n.desc.NetworkName
		if name == "" {
			name = "br0"
		}
		out.Addf("-netdev bridge,id=netdev%d,br=%s,helper=/usr/libexec/qemu-bridge-helper", n.index, name)
		out.Addf("-device %s,netdev=netdev%d,mac=%s", n.device, n.index, n.mac)
	case "nat":
		out.Add("-net user")
		out.Add("-net nic")
	default:
		return nodeerr.Unsupportedf(networkComponent, "unsupported network mode: %s", n.desc.NetworkMode)
	}

	return nil
}

// MAC returns the (possibly auto-generated) MAC address, for callers that
// need to confirm per-render uniqueness.
func (n *Network) MAC() string {
	return n.mac
}
