package guest

import (
	"fmt"
)

// ManifestNotFoundError occurs when a guest directory has no readable manifest.yaml.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("no guest manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml is not valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("guest manifest '%s' is not valid YAML: %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when a manifest field is missing or out of range.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("guest manifest '%s': %s", e.Path, e.Message)
	}
	return fmt.Sprintf("guest manifest '%s': %s: %s", e.Path, e.Field, e.Message)
}

// WasmNotFoundError occurs when wasm.file points at nothing.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("guest module '%s' named in '%s' does not exist",
		e.WasmFile, e.ManifestPath)
}

// GuestNotFoundError occurs when a guest is not in the catalog.
type GuestNotFoundError struct {
	GuestName string
}

func (e *GuestNotFoundError) Error() string {
	return fmt.Sprintf("guest '%s' not found", e.GuestName)
}

// GuestAlreadyRegisteredError occurs when attempting to register a duplicate guest.
type GuestAlreadyRegisteredError struct {
	GuestName string
}

func (e *GuestAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("guest '%s' is already registered", e.GuestName)
}

// NoGuestsFoundError occurs when guest_paths holds no loadable guest.
type NoGuestsFoundError struct {
	Paths []string
}

func (e *NoGuestsFoundError) Error() string {
	return fmt.Sprintf("no guests found in %v", e.Paths)
}
