package task

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/infrasim/nodesim/internal/command"
	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/workspace"
)

const bmcComponent = "task:bmc"

// DefaultBMCBinary mirrors the original source's ipmi_sim default.
const DefaultBMCBinary = "/usr/local/bin/ipmi_sim"

// BMCTask is the concrete supervisor for the IPMI simulator (spec.md §4.7).
type BMCTask struct {
	*Task

	nodeType string
	desc     descriptor.BMC
	ws       *workspace.Workspace
	binary   string

	configFile string
	emuFile    string
}

// NewBMCTask returns a BMC task. nodeType selects the vendor emulation-asset
// namespace for the default emu file (mirroring ComputeTask's nodeType use
// for resolveSmbios); ws gives access to the rendered config path and the
// scripts materialize-workspace already staged.
func NewBMCTask(name string, priority int, pidFile, logPath string, nodeType string, desc descriptor.BMC, ws *workspace.Workspace) *BMCTask {
	return &BMCTask{
		Task:     NewTask(name, priority, pidFile, logPath, bmcComponent),
		nodeType: nodeType,
		desc:     desc,
		ws:       ws,
		binary:   DefaultBMCBinary,
	}
}

// WriteConfig renders the packaged BMC config template with the BMC
// descriptor plus the three shared endpoint ports and the SOL device path
// (spec.md §4.7 write-config). It delegates to workspace.Materialize, which
// does nothing once the workspace root exists: the config is written only
// when the workspace has not been materialized yet, and an existing
// vbmc.conf is not re-rendered, even when the ports or SOL device passed
// here differ from the ones it was rendered with.
func (bt *BMCTask) WriteConfig(ipmiConsolePort, bmcConnectionPort, iolPort int, solDevice string) error {
	params := workspace.BMCConfigParams{
		StartCmdScript:       bt.resolveScript(bt.desc.StartCmd, "startcmd"),
		ChassisControlScript: bt.resolveScript(bt.desc.ChassisControl, "chassiscontrol"),
		LanControlScript:     bt.resolveScript(bt.desc.LanControl, "lancontrol"),
		LanInterface:         bt.resolveInterface(),
		Username:             bt.desc.Username,
		Password:             bt.desc.Password,
		PortQemuIpmi:         bmcConnectionPort,
		PortIpmiConsole:      ipmiConsolePort,
		PortIol:              iolPort,
		SolDevice:            solDevice,
		PoweroffWait:         bt.desc.PoweroffWait,
		KillWait:             bt.desc.KillWait,
		StartNow:             bt.desc.StartNow,
		HistoryFru:           bt.desc.HistoryFru,
	}

	bt.configFile = bt.resolveConfigFile()
	bt.emuFile = bt.resolveEmuFile()

	return bt.ws.Materialize(nil, params, bt.desc.ConfigFile, "", bt.desc.EmuFile, "")
}

func (bt *BMCTask) resolveScript(override, name string) string {
	if override != "" {
		return override
	}
	switch name {
	case "startcmd":
		return bt.ws.StartCmdScript()
	case "chassiscontrol":
		return bt.ws.ChassisControlScript()
	case "lancontrol":
		return bt.ws.LanControlScript()
	}
	return ""
}

func (bt *BMCTask) resolveInterface() string {
	if bt.desc.Interface != "" {
		return bt.desc.Interface
	}
	return firstEInterface()
}

// firstEInterface auto-selects a LAN interface, mirroring the original
// source's filter(lambda x: 'e' in x, netifaces.interfaces())[0] (Design
// Notes "Auto-generated defaults that can drift").
func firstEInterface() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "eth0"
	}
	for _, iface := range ifaces {
		if strings.Contains(iface.Name, "e") {
			return iface.Name
		}
	}
	return "eth0"
}

func (bt *BMCTask) resolveConfigFile() string {
	if bt.desc.ConfigFile != "" {
		return bt.desc.ConfigFile
	}
	return bt.ws.ConfigFile()
}

func (bt *BMCTask) resolveEmuFile() string {
	if bt.desc.EmuFile != "" {
		return bt.desc.EmuFile
	}
	return bt.ws.Data() + "/" + bt.nodeType + ".emu"
}

// GetCommandLine builds the ipmi_sim invocation (spec.md §4.7).
func (bt *BMCTask) GetCommandLine() (string, error) {
	return fmt.Sprintf("%s -c %s -f %s -n -s /var/tmp", bt.binary, bt.resolveConfigFile(), bt.resolveEmuFile()), nil
}

// Precheck verifies the simulator binary, the three scripts, the emulation
// file and the config file exist, and that poweroff_wait, kill_wait,
// port_iol, historyfru are non-negative (spec.md §4.7).
func (bt *BMCTask) Precheck(iolPort int) error {
	if _, err := command.Run(bmcComponent, "which "+bt.binary); err != nil {
		return nodeerr.CommandNotFoundf(bmcComponent, "%s not found", bt.binary)
	}

	for label, path := range map[string]string{
		"lan control script":      bt.resolveScript(bt.desc.LanControl, "lancontrol"),
		"chassis control script":  bt.resolveScript(bt.desc.ChassisControl, "chassiscontrol"),
		"startcmd script":         bt.resolveScript(bt.desc.StartCmd, "startcmd"),
	} {
		if _, err := os.Stat(path); err != nil {
			return nodeerr.ArgsIncorrectf(bmcComponent, "%s %s doesn't exist", label, path)
		}
	}

	if bt.desc.PoweroffWait < 0 {
		return nodeerr.ArgsIncorrectf(bmcComponent, "poweroff_wait must be >= 0, got %d", bt.desc.PoweroffWait)
	}
	if bt.desc.KillWait < 0 {
		return nodeerr.ArgsIncorrectf(bmcComponent, "kill_wait must be >= 0, got %d", bt.desc.KillWait)
	}
	if iolPort < 0 {
		return nodeerr.ArgsIncorrectf(bmcComponent, "ipmi_over_lan_port must be >= 0, got %d", iolPort)
	}
	if bt.desc.HistoryFru < 0 {
		return nodeerr.ArgsIncorrectf(bmcComponent, "historyfru must be >= 0, got %d", bt.desc.HistoryFru)
	}

	if _, err := os.Stat(bt.resolveEmuFile()); err != nil {
		return nodeerr.ArgsIncorrectf(bmcComponent, "target emulation file doesn't exist: %s", bt.resolveEmuFile())
	}
	if _, err := os.Stat(bt.resolveConfigFile()); err != nil {
		return nodeerr.ArgsIncorrectf(bmcComponent, "target config file doesn't exist: %s", bt.resolveConfigFile())
	}

	return nil
}
