package element

import (
	"os"
	"strings"
	"testing"

	"github.com/infrasim/nodesim/internal/descriptor"
)

func TestDriveDevBlockFormatIsRaw(t *testing.T) {
	d := NewDrive(descriptor.Drive{File: "/dev/sdb"}, 0, descriptor.ControllerAHCI, "sata0.0", t.TempDir())
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if d.format != "raw" {
		t.Fatalf("got format %q", d.format)
	}
	if err := d.Precheck(); err != nil {
		t.Fatalf("Precheck: %v", err)
	}

	got := renderFragmentOnly(t, d)
	if !strings.Contains(got, "format=raw") {
		t.Fatalf("got %q", got)
	}
}

func TestDriveExistingFileSkipsCreate(t *testing.T) {
	dir := t.TempDir()
	f := dir + "/existing.qcow2"
	if err := os.WriteFile(f, []byte("not a real qcow2"), 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDrive(descriptor.Drive{File: f}, 1, descriptor.ControllerAHCI, "sata0.1", dir)
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Precheck(); err != nil {
		t.Fatalf("Precheck: %v", err)
	}

	got := renderFragmentOnly(t, d)
	if !strings.Contains(got, "format=qcow2") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "id=drive1") {
		t.Fatalf("got %q", got)
	}
}

func TestDriveVendorRejectedOnAHCI(t *testing.T) {
	d := NewDrive(descriptor.Drive{File: "/dev/sda", Vendor: "Dell"}, 0, descriptor.ControllerAHCI, "sata0.0", t.TempDir())
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Precheck(); err == nil {
		t.Fatal("expected ArgsIncorrect: vendor only valid on megasas*")
	}
}

func TestDriveModelAllowedOnMegasas(t *testing.T) {
	d := NewDrive(descriptor.Drive{File: "/dev/sda", Model: "PERC"}, 0, "megasas-gen2", "scsi0.0", t.TempDir())
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Precheck(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDriveAioDroppedWhenCacheNotNone(t *testing.T) {
	d := NewDrive(descriptor.Drive{File: "/dev/sda", Cache: "writeback", Aio: "native"}, 0, descriptor.ControllerAHCI, "sata0.0", t.TempDir())
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Precheck(); err != nil {
		t.Fatalf("Precheck: %v", err)
	}

	got := renderFragmentOnly(t, d)
	if strings.Contains(got, "aio=") {
		t.Fatalf("expected aio to be dropped when cache != none, got %q", got)
	}
}

func TestDriveAioKeptWhenCacheNone(t *testing.T) {
	d := NewDrive(descriptor.Drive{File: "/dev/sda", Cache: "none", Aio: "native"}, 0, descriptor.ControllerAHCI, "sata0.0", t.TempDir())
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Precheck(); err != nil {
		t.Fatalf("Precheck: %v", err)
	}

	got := renderFragmentOnly(t, d)
	if !strings.Contains(got, "aio=native") {
		t.Fatalf("expected aio to be kept when cache == none, got %q", got)
	}
}

func renderFragmentOnly(t *testing.T, d *Drive) string {
	t.Helper()
	return renderOne(t, d)
}
