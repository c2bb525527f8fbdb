package element

import (
	"fmt"

	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/nodeerr"
	"github.com/infrasim/nodesim/internal/optargs"
)

const controllerComponent = "model:controller"

// StorageController owns an ordered drive list (spec.md §4.4). During Init
// it assigns each drive a global index, a controller index
// (driveIndex / maxPerController), and a bus address: sata<ci>.<unit> for
// AHCI, where unit = driveIndex % maxPerController, scsi<ci>.0 otherwise.
type StorageController struct {
	desc        descriptor.Controller
	startIndex  int // first global drive index this controller's drives receive
	controllerIndexBase int // offset added to each drive's local controller index (ci), so multiple controllers in a backend don't collide on id=sata0
	homeDir     string

	drives []*Drive
	numControllers int
}

var _ Element = (*StorageController)(nil)

// NewStorageController returns a controller element. startIndex is the
// global drive index of this controller's first drive (assigned by
// BackendStorage so indices are unique across the whole sequence).
// controllerIndexBase offsets this controller's "sata<ci>"/"scsi<ci>" ids so
// several controllers in one backend don't collide.
func NewStorageController(desc descriptor.Controller, startIndex, controllerIndexBase int, homeDir string) *StorageController {
	return &StorageController{desc: desc, startIndex: startIndex, controllerIndexBase: controllerIndexBase, homeDir: homeDir}
}

// DriveCount returns how many drives this controller owns, for the caller to
// compute the next controller's startIndex.
func (sc *StorageController) DriveCount() int {
	return len(sc.desc.Drives)
}

// ControllerCount returns ceil(drives / max_per_controller), the number of
// controllers actually instantiated for this descriptor (spec.md §3
// invariants), available after Init.
func (sc *StorageController) ControllerCount() int {
	return sc.numControllers
}

func (sc *StorageController) Init() error {
	if sc.desc.MaxDrivePerController <= 0 {
		return nodeerr.ArgsIncorrectf(controllerComponent, "max_drive_per_controller must be positive, got %d", sc.desc.MaxDrivePerController)
	}

	n := len(sc.desc.Drives)
	if n == 0 {
		sc.numControllers = 0
		return nil
	}
	sc.numControllers = (n + sc.desc.MaxDrivePerController - 1) / sc.desc.MaxDrivePerController

	sc.drives = make([]*Drive, 0, n)
	for i, dd := range sc.desc.Drives {
		ci := i / sc.desc.MaxDrivePerController
		unit := i % sc.desc.MaxDrivePerController

		var bus string
		if sc.desc.Type == descriptor.ControllerAHCI {
			bus = fmt.Sprintf("sata%d.%d", sc.controllerIndexBase+ci, unit)
		} else {
			bus = fmt.Sprintf("scsi%d.0", sc.controllerIndexBase+ci)
		}

		drv := NewDrive(dd, sc.startIndex+i, sc.desc.Type, bus, sc.homeDir)
		if err := drv.Init(); err != nil {
			return err
		}
		sc.drives = append(sc.drives, drv)
	}

	return nil
}

func (sc *StorageController) Precheck() error {
	for _, d := range sc.drives {
		if err := d.Precheck(); err != nil {
			return err
		}
	}
	return nil
}

func (sc *StorageController) Render(out *optargs.Builder) error {
	prefix := "ahci"
	if descriptor.IsMegasas(sc.desc.Type) || descriptor.IsLSI(sc.desc.Type) {
		prefix = sc.desc.Type
	}

	idPrefix := "sata"
	if prefix != "ahci" {
		idPrefix = "scsi"
	}

	for ci := 0; ci < sc.numControllers; ci++ {
		frag := fmt.Sprintf("-device %s,id=%s%d", prefix, idPrefix, sc.controllerIndexBase+ci)
		if sc.desc.UseJbod && descriptor.IsMegasas(sc.desc.Type) {
			frag += ",use_jbod=on"
		}
		out.Add(frag)
	}

	for _, d := range sc.drives {
		if err := d.Render(out); err != nil {
			return err
		}
	}

	return nil
}
