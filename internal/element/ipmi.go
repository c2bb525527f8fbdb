package element

import (
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const ipmiComponent = "model:ipmi"

// IPMI models the VMM-side character device joining the VM to the BMC
// simulator over a TCP socket (spec.md §4.4 IPMI wiring).
type IPMI struct {
	host string
	port int
}

var _ Element = (*IPMI)(nil)

// NewIPMI returns an IPMI wiring element connecting to host:port, the BMC
// simulator's IPMI-over-KCS TCP endpoint.
func NewIPMI(host string, port int) *IPMI {
	return &IPMI{host: host, port: port}
}

func (i *IPMI) Init() error {
	if i.host == "" {
		i.host = "127.0.0.1"
	}
	return nil
}

func (i *IPMI) Precheck() error {
	if i.port <= 0 {
		return nodeerr.ArgsIncorrectf(ipmiComponent, "invalid ipmi kcs port: %d", i.port)
	}
	return nil
}

func (i *IPMI) Render(out *optargs.Builder) error {
	out.Addf("-chardev socket,id=ipmi0,host=%s,port=%d,reconnect=10", i.host, i.port)
	out.Add("-device ipmi-bmc-extern,chardev=ipmi0,id=bmc0")
	out.Add("-device isa-ipmi-kcs,bmc=bmc0")
	return nil
}
