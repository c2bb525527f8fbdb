package element

import (
	"testing"

	"github.com/infrasim/nodesim/internal/descriptor"
)

func TestMemoryRender(t *testing.T) {
	m := NewMemory(descriptor.Memory{Size: 1536})
	got := renderOne(t, m)
	if got != "-m 1536" {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryRequiresPositiveSize(t *testing.T) {
	m := NewMemory(descriptor.Memory{Size: 0})
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Precheck(); err == nil {
		t.Fatal("expected ArgsIncorrect for size=0")
	}
}
