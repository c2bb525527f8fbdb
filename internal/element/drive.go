package element

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/infrasim/nodesim/internal/command"
	"github.com/infrasim/nodesim/internal/descriptor"
	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const driveComponent = "model:drive"

// Drive models one disk image or block device attached to a storage
// controller (spec.md §4.4). Indexing is global across the whole backend
// storage sequence: drive N receives id drive<N> and image file
// sd<letter>.img where letter = 'a' + N.
type Drive struct {
	desc           descriptor.Drive
	globalIndex    int
	controllerType string
	bus            string // e.g. "sata0.2" or "scsi1.0", assigned by the owning controller
	homeDir        string // <HOME>/.infrasim, used to place auto-created images

	id     string
	file   string
	format string
}

var _ Element = (*Drive)(nil)

// NewDrive returns a Drive element. globalIndex, controllerType and bus are
// assigned by the owning StorageController during its own Init.
func NewDrive(desc descriptor.Drive, globalIndex int, controllerType, bus, homeDir string) *Drive {
	return &Drive{
		desc:           desc,
		globalIndex:    globalIndex,
		controllerType: controllerType,
		bus:            bus,
		homeDir:        homeDir,
	}
}

func driveLetter(i int) byte {
	return byte('a' + i)
}

func (d *Drive) Init() error {
	d.id = fmt.Sprintf("drive%d", d.globalIndex)

	if d.desc.File != "" {
		d.file = d.desc.File
	} else {
		letter := driveLetter(d.globalIndex)
		d.file = filepath.Join(d.homeDir, fmt.Sprintf("sd%c.img", letter))
	}

	if strings.HasPrefix(d.file, "/dev/") {
		d.format = "raw"
	} else if d.desc.Format != "" {
		d.format = d.desc.Format
	} else {
		d.format = "qcow2"
	}

	return nil
}

func (d *Drive) Precheck() error {
	if descriptor.IsMegasas(d.controllerType) {
		// vendor only valid on megasas*, model valid on megasas* too
	} else if d.desc.Vendor != "" {
		return nodeerr.ArgsIncorrectf(driveComponent, "vendor is only valid on megasas* controllers, got %s", d.controllerType)
	}

	if d.controllerType == descriptor.ControllerAHCI || descriptor.IsMegasas(d.controllerType) {
		// model valid on ahci and megasas*
	} else if d.desc.Model != "" {
		return nodeerr.ArgsIncorrectf(driveComponent, "model is only valid on ahci/megasas* controllers, got %s", d.controllerType)
	}

	if d.desc.Cache != "" {
		switch d.desc.Cache {
		case "none", "writeback", "writethrough":
		default:
			return nodeerr.ArgsIncorrectf(driveComponent, "invalid cache mode: %s", d.desc.Cache)
		}
	}

	if d.desc.Aio != "" {
		switch d.desc.Aio {
		case "threads", "native":
		default:
			return nodeerr.ArgsIncorrectf(driveComponent, "invalid aio mode: %s", d.desc.Aio)
		}
	}

	if !strings.HasPrefix(d.file, "/dev/") {
		if err := d.ensureImage(); err != nil {
			return err
		}
	}

	return nil
}

// ensureImage creates the backing qcow2 image with qemu-img when the file
// does not yet exist on disk (spec.md §4.4 Drive).
func (d *Drive) ensureImage() error {
	if _, err := os.Stat(d.file); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return nodeerr.ArgsIncorrectf(driveComponent, "could not stat drive file %s: %v", d.file, err)
	}

	if err := os.MkdirAll(filepath.Dir(d.file), 0755); err != nil {
		return nodeerr.ArgsIncorrectf(driveComponent, "could not create directory for %s: %v", d.file, err)
	}

	size := d.desc.Size
	if size <= 0 {
		size = 8
	}

	cmd := fmt.Sprintf("qemu-img create -f qcow2 %s %dG", d.file, size)
	if _, err := command.Run(driveComponent, cmd); err != nil {
		return err
	}

	log.Named(driveComponent).Info("created image %s (%dG)", d.file, size)
	return nil
}

func (d *Drive) devicePart() string {
	var dev string
	switch {
	case descriptor.IsMegasas(d.controllerType), descriptor.IsLSI(d.controllerType):
		dev = "scsi-hd"
	case d.controllerType == descriptor.ControllerAHCI:
		dev = "ide-hd"
	default:
		dev = "ide-hd"
	}

	frag := fmt.Sprintf("%s,bus=%s,drive=%s", dev, d.bus, d.id)

	if d.desc.Model != "" {
		frag += ",model=" + d.desc.Model
	}
	if d.desc.Vendor != "" {
		frag += ",vendor=" + d.desc.Vendor
	}
	if d.desc.Product != "" {
		frag += ",product=" + d.desc.Product
	}
	if d.desc.Version != "" {
		frag += ",version=" + d.desc.Version
	}
	if d.desc.Rotation != "" {
		frag += ",rotation=" + d.desc.Rotation
	}
	if d.desc.Serial != "" {
		frag += ",serial=" + d.desc.Serial
	}
	if d.desc.Bootindex != 0 {
		frag += fmt.Sprintf(",bootindex=%d", d.desc.Bootindex)
	}

	return frag
}

func (d *Drive) hostPart() string {
	frag := fmt.Sprintf("file=%s,format=%s,if=none,id=%s", d.file, d.format, d.id)

	cache := d.desc.Cache
	if cache == "" {
		cache = "writeback"
	}
	frag += ",cache=" + cache

	// aio is emitted only when cache == "none"; silently dropped otherwise,
	// per the original source (Design Notes, documented open question).
	if cache == "none" && d.desc.Aio != "" {
		frag += ",aio=" + d.desc.Aio
	}

	return frag
}

func (d *Drive) Render(out *optargs.Builder) error {
	out.Addf("-drive %s -device %s", d.hostPart(), d.devicePart())
	return nil
}
