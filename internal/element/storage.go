package element

import (
	"github.com/infrasim/nodesim/internal/descriptor"
	"github.com/infrasim/nodesim/internal/optargs"
)

// BackendStorage is the ordered sequence of storage controllers, rendered
// in order (spec.md §4.4).
type BackendStorage struct {
	homeDir      string
	descs        []descriptor.Controller
	controllers  []*StorageController
}

var _ Element = (*BackendStorage)(nil)

// NewBackendStorage returns a BackendStorage element for the ordered
// controller descriptors.
func NewBackendStorage(descs []descriptor.Controller, homeDir string) *BackendStorage {
	return &BackendStorage{descs: descs, homeDir: homeDir}
}

func (bs *BackendStorage) Init() error {
	nextDriveIndex := 0
	nextControllerIndex := 0

	bs.controllers = make([]*StorageController, 0, len(bs.descs))
	for _, d := range bs.descs {
		sc := NewStorageController(d, nextDriveIndex, nextControllerIndex, bs.homeDir)
		if err := sc.Init(); err != nil {
			return err
		}
		bs.controllers = append(bs.controllers, sc)

		nextDriveIndex += sc.DriveCount()
		nextControllerIndex += sc.ControllerCount()
	}

	return nil
}

func (bs *BackendStorage) Precheck() error {
	for _, sc := range bs.controllers {
		if err := sc.Precheck(); err != nil {
			return err
		}
	}
	return nil
}

func (bs *BackendStorage) Render(out *optargs.Builder) error {
	for _, sc := range bs.controllers {
		if err := sc.Render(out); err != nil {
			return err
		}
	}
	return nil
}
