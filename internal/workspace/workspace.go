// Package workspace materializes and tears down the per-node on-disk
// workspace the orchestrator and tasks share: the data/ and script/
// directories, the staged node-descriptor snapshot, the rendered BMC
// config and shell scripts, and the staged SMBIOS/emulation assets
// (spec.md §3 Workspace, §4.9 materialize-workspace/terminate-workspace).
//
// Rendering uses the standard library's text/template against assets
// packaged with go:embed, the same way the teacher's igor and minirouter
// commands render network configuration from packaged templates.
package workspace

import (
	"embed"
	"io"
	"os"
	"path/filepath"
	"text/template"

	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
)

const component = "workspace"

//go:embed templates
var packagedAssets embed.FS

const templatesDir = "templates"

// Workspace is the materialized on-disk layout for one node.
type Workspace struct {
	Root string // <HOME>/.infrasim/<name>
	Name string
}

// Data returns the workspace's data/ directory (YAML snapshot, rendered BMC
// config, staged SMBIOS and emulation assets).
func (w *Workspace) Data() string { return filepath.Join(w.Root, "data") }

// Script returns the workspace's script/ directory (rendered shell scripts).
func (w *Workspace) Script() string { return filepath.Join(w.Root, "script") }

// LogDir returns the per-node log directory under /var/log/infrasim.
func (w *Workspace) LogDir() string { return filepath.Join("/var/log/infrasim", w.Name) }

// PidFile returns the path of the pid dotfile for the named task.
func (w *Workspace) PidFile(taskName string) string {
	return filepath.Join(w.Root, "."+taskName)
}

// PtyPath returns the default SOL pseudo-terminal path for this workspace.
func (w *Workspace) PtyPath() string { return filepath.Join(w.Root, ".pty0") }

// YmlFile is the staged node-descriptor snapshot path.
func (w *Workspace) YmlFile() string { return filepath.Join(w.Data(), "infrasim.yml") }

// New resolves the workspace root for a node name under the user's home
// directory ($HOME/.infrasim/<name>), the layout spec.md §3 requires.
func New(name string) (*Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nodeerr.Internalf(component, "could not resolve home directory: %v", err)
	}
	return &Workspace{
		Root: filepath.Join(home, ".infrasim", name),
		Name: name,
	}, nil
}

// Exists reports whether the workspace root has already been materialized.
func (w *Workspace) Exists() bool {
	_, err := os.Stat(w.YmlFile())
	return err == nil
}

// InfrasimHome returns the shared <HOME>/.infrasim directory (the parent of
// every node's workspace root), where auto-created drive images are placed
// when a drive omits file (spec.md §4.4 Drive).
func (w *Workspace) InfrasimHome() string {
	return filepath.Dir(w.Root)
}

// BMCConfigParams are the substitutions accepted by the packaged BMC
// configuration template (spec.md §6).
type BMCConfigParams struct {
	StartCmdScript       string
	ChassisControlScript string
	LanControlScript     string
	LanInterface         string
	Username             string
	Password             string
	PortQemuIpmi         int
	PortIpmiConsole      int
	PortIol              int
	SolDevice            string
	PoweroffWait         int
	KillWait             int
	StartNow             bool
	HistoryFru           int
}

// scriptParams are the substitutions accepted by startcmd/stopcmd/resetcmd.
type scriptParams struct {
	YmlFile string
}

// chassisControlParams are the substitutions accepted by chassiscontrol.
type chassisControlParams struct {
	StartCmd    string
	StopCmd     string
	ResetCmd    string
	QemuPidFile string
}

// Materialize creates the workspace directory tree (idempotent: a second
// call for the same node name is a no-op and never overwrites
// data/infrasim.yml, spec.md §8 invariant 6), stages the node-descriptor
// snapshot, renders the BMC config and shell scripts, and stages the
// SMBIOS and emulation assets.
//
// configFileOverride, when non-empty, is copied verbatim in place of
// rendering vbmc.conf (spec.md §4.9: "if bmc.config_file is given copy it
// verbatim").
func (w *Workspace) Materialize(node []byte, bmc BMCConfigParams, configFileOverride, smbiosSrc, emuSrc string, qemuPidFile string) error {
	// If the workspace root already exists, materialize is a full no-op:
	// the original source's init_workspace returns immediately rather than
	// re-rendering anything (spec.md §8 invariant 6).
	if _, err := os.Stat(w.Root); err == nil {
		log.Named(component).Debug("workspace %s already materialized", w.Root)
		return nil
	}

	for _, dir := range []string{w.Root, w.Data(), w.Script(), w.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nodeerr.Internalf(component, "could not create %s: %v", dir, err)
		}
	}

	if err := os.WriteFile(w.YmlFile(), node, 0644); err != nil {
		return nodeerr.Internalf(component, "could not stage node descriptor: %v", err)
	}

	sp := scriptParams{YmlFile: w.YmlFile()}
	for _, name := range []string{"startcmd", "stopcmd", "resetcmd"} {
		if err := w.renderScript(name, sp, 0700); err != nil {
			return err
		}
	}

	cc := chassisControlParams{
		StartCmd:    filepath.Join(w.Script(), "startcmd"),
		StopCmd:     filepath.Join(w.Script(), "stopcmd"),
		ResetCmd:    filepath.Join(w.Script(), "resetcmd"),
		QemuPidFile: qemuPidFile,
	}
	if err := w.renderScript("chassiscontrol", cc, 0700); err != nil {
		return err
	}

	if err := w.symlinkLanControl(); err != nil {
		return err
	}

	if configFileOverride != "" {
		if err := copyFile(configFileOverride, filepath.Join(w.Data(), "vbmc.conf")); err != nil {
			return nodeerr.ArgsIncorrectf(component, "could not copy bmc config_file %s: %v", configFileOverride, err)
		}
	} else if err := w.renderVbmcConf(bmc); err != nil {
		return err
	}

	if smbiosSrc != "" {
		if err := copyFile(smbiosSrc, filepath.Join(w.Data(), filepath.Base(smbiosSrc))); err != nil {
			log.Named(component).Warn("could not stage smbios asset %s: %v", smbiosSrc, err)
		}
	}
	if emuSrc != "" {
		if err := copyFile(emuSrc, filepath.Join(w.Data(), filepath.Base(emuSrc))); err != nil {
			log.Named(component).Warn("could not stage emulation asset %s: %v", emuSrc, err)
		}
	}

	log.Named(component).Info("materialized workspace %s", w.Root)
	return nil
}

func (w *Workspace) renderScript(name string, data interface{}, mode os.FileMode) error {
	tmpl, err := template.ParseFS(packagedAssets, filepath.Join(templatesDir, name+".tmpl"))
	if err != nil {
		return nodeerr.Internalf(component, "could not load packaged template %s: %v", name, err)
	}

	dst := filepath.Join(w.Script(), name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nodeerr.Internalf(component, "could not open %s: %v", dst, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return nodeerr.Internalf(component, "could not render %s: %v", name, err)
	}
	return nil
}

func (w *Workspace) renderVbmcConf(bmc BMCConfigParams) error {
	tmpl, err := template.ParseFS(packagedAssets, filepath.Join(templatesDir, "vbmc.conf.tmpl"))
	if err != nil {
		return nodeerr.Internalf(component, "could not load packaged vbmc.conf template: %v", err)
	}

	dst := filepath.Join(w.Data(), "vbmc.conf")
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nodeerr.Internalf(component, "could not open %s: %v", dst, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, bmc); err != nil {
		return nodeerr.Internalf(component, "could not render vbmc.conf: %v", err)
	}
	return nil
}

// ConfigFile is the default path of the rendered BMC config.
func (w *Workspace) ConfigFile() string { return filepath.Join(w.Data(), "vbmc.conf") }

// LanControlScript is the default path of the (symlinked) lancontrol script.
func (w *Workspace) LanControlScript() string { return filepath.Join(w.Script(), "lancontrol") }

// ChassisControlScript is the default path of the rendered chassiscontrol
// script.
func (w *Workspace) ChassisControlScript() string {
	return filepath.Join(w.Script(), "chassiscontrol")
}

// StartCmdScript is the default path of the rendered startcmd script.
func (w *Workspace) StartCmdScript() string { return filepath.Join(w.Script(), "startcmd") }

func (w *Workspace) symlinkLanControl() error {
	dst := w.LanControlScript()
	if _, err := os.Lstat(dst); err == nil {
		return nil
	}

	asset, err := packagedAssets.ReadFile(filepath.Join(templatesDir, "lancontrol"))
	if err != nil {
		return nodeerr.Internalf(component, "could not load packaged lancontrol script: %v", err)
	}

	// embed.FS assets are not addressable on disk for os.Symlink, so the
	// packaged script is staged once under data/ and the workspace script
	// symlinks to that staged copy.
	staged := filepath.Join(w.Data(), "lancontrol")
	if _, err := os.Stat(staged); os.IsNotExist(err) {
		if err := os.WriteFile(staged, asset, 0700); err != nil {
			return nodeerr.Internalf(component, "could not stage lancontrol asset: %v", err)
		}
	}

	if err := os.Symlink(staged, dst); err != nil {
		return nodeerr.Internalf(component, "could not symlink lancontrol: %v", err)
	}
	return nil
}

// Terminate deletes the workspace directory (spec.md §4.9
// terminate-workspace).
func (w *Workspace) Terminate() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return nodeerr.Internalf(component, "could not remove workspace %s: %v", w.Root, err)
	}
	log.Named(component).Info("terminated workspace %s", w.Root)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
