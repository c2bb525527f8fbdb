// Package element models the VM's hardware as a tree of elements (spec.md
// §4.4, Design Notes "Polymorphic element tree"): CPU, Memory, Drive,
// StorageController, BackendStorage, Network, BackendNetwork, IPMI. Each
// element exposes the same three-operation capability — Init, Precheck,
// Render — executed in that strict order; no dynamic dispatch beyond it.
//
// Element values exist only for the duration of command-line construction
// (Design Notes "Element composition with private accumulator"): composition
// is a tree-walk append into a private optargs.Builder, no cycles, no shared
// mutable state.
package element

import "github.com/infrasim/nodesim/internal/optargs"

// Element is the capability every node in the hardware tree implements.
// Render must only be called after Init; Precheck may run any time after
// Init.
type Element interface {
	// Init populates the element from its descriptor and applies defaults.
	Init() error
	// Precheck validates invariants and host capabilities.
	Precheck() error
	// Render appends the element's VMM command fragments to out and
	// recurses into children.
	Render(out *optargs.Builder) error
}
