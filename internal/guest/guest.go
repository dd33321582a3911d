// Package guest finds guest modules on disk by their manifest.
package guest

import (
	"time"

	"github.com/woxQAQ/fchost/internal/wasm"
)

// Guest is a discovered guest: its manifest and where it was found.
type Guest struct {
	Manifest *Manifest

	// FoundAt is when the manifest was read.
	FoundAt time.Time
}

// Name returns the guest name.
func (g *Guest) Name() string {
	return g.Manifest.Name
}

// Machine returns the machine the guest emulates.
func (g *Guest) Machine() string {
	return g.Manifest.Machine
}

// Version returns the guest version.
func (g *Guest) Version() string {
	return g.Manifest.Version
}

// Source returns the module source the host loads.
func (g *Guest) Source() wasm.ModuleSource {
	return &wasm.FileModuleSource{Path: g.Manifest.WasmPath()}
}
