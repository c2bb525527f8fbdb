// Package optargs accumulates ordered command-line fragments for a single
// process and renders them into one shell-safe string. It mirrors the way
// the teacher builds up QEMU argv slices fragment by fragment (see
// kvm.go's qemuArgs), generalized into a reusable, duplicate-rejecting
// accumulator as called for by the element tree (spec.md §4.1/§4.4).
package optargs

import (
	"fmt"
	"strings"

	log "github.com/infrasim/nodesim/internal/minilog"
	"github.com/infrasim/nodesim/internal/nodeerr"
)

// Builder accumulates fragments in insertion order, dropping duplicates.
// No quoting is performed: fragments are assumed already shell-safe.
type Builder struct {
	component string
	seen      map[string]bool
	fragments []string
}

// New returns a Builder that tags its warnings with component (e.g.
// "task:compute").
func New(component string) *Builder {
	return &Builder{
		component: component,
		seen:      make(map[string]bool),
	}
}

// Add appends fragment, dropping it with a warning if it duplicates a
// fragment already added.
func (b *Builder) Add(fragment string) {
	if b.seen[fragment] {
		log.Named(b.component).Warn("dropping duplicate option fragment: %q", fragment)
		return
	}
	b.seen[fragment] = true
	b.fragments = append(b.fragments, fragment)
}

// Addf is a convenience wrapper that formats fragment before adding it.
func (b *Builder) Addf(format string, args ...interface{}) {
	b.Add(fmt.Sprintf(format, args...))
}

// Render joins the accumulated fragments with single spaces in insertion
// order. It fails with nodeerr.Internal when nothing was added.
func (b *Builder) Render() (string, error) {
	if len(b.fragments) == 0 {
		return "", nodeerr.Internalf(b.component, "Empty: no option fragments were added")
	}
	return strings.Join(b.fragments, " "), nil
}

// Fragments returns a copy of the accumulated fragments in insertion order,
// without requiring a non-empty Render.
func (b *Builder) Fragments() []string {
	out := make([]string, len(b.fragments))
	copy(out, b.fragments)
	return out
}

// Len reports how many distinct fragments have been added.
func (b *Builder) Len() int {
	return len(b.fragments)
}
