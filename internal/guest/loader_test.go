package guest

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/internal/wasm"
)

func TestLoader_LoadGuest(t *testing.T) {
	dir := writeGuest(t, t.TempDir(), "famicom", validManifest, "go_main.wasm")

	g, err := NewLoader(zap.NewNop()).LoadGuest(dir)
	if err != nil {
		t.Fatalf("LoadGuest() failed: %v", err)
	}

	if g.Name() != "famicom" || g.Machine() != "famicom" || g.Version() != "1.0.0" {
		t.Errorf("unexpected guest %s/%s/%s", g.Name(), g.Machine(), g.Version())
	}

	src, ok := g.Source().(*wasm.FileModuleSource)
	if !ok {
		t.Fatalf("Source() returned %T", g.Source())
	}
	if src.Path != filepath.Join(dir, "go_main.wasm") {
		t.Errorf("unexpected source path %s", src.Path)
	}
}

func TestLoader_LoadGuest_InvalidManifest(t *testing.T) {
	dir := writeGuest(t, t.TempDir(), "broken", "version: 1.0.0\n", "")

	_, err := NewLoader(zap.NewNop()).LoadGuest(dir)

	var validationErr *ManifestValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ManifestValidationError, got %T", err)
	}
}

func TestLoader_Discover(t *testing.T) {
	base := t.TempDir()
	writeGuest(t, base, "famicom", validManifest, "go_main.wasm")
	writeGuest(t, base, "other", "name: other\nversion: 0.1.0\nmachine: generic\nwasm:\n  file: other.wasm\ncapabilities: [video]\n", "other.wasm")
	writeGuest(t, base, "broken", "name: [\n", "")

	guests, err := NewLoader(zap.NewNop()).Discover([]string{base, filepath.Join(base, "missing")})
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if len(guests) != 2 {
		t.Fatalf("expected 2 guests, got %d", len(guests))
	}
}

func TestLoader_Discover_NoGuests(t *testing.T) {
	base := t.TempDir()
	writeGuest(t, base, "empty", "", "")

	_, err := NewLoader(zap.NewNop()).Discover([]string{base})

	var noGuests *NoGuestsFoundError
	if !errors.As(err, &noGuests) {
		t.Fatalf("expected NoGuestsFoundError, got %T", err)
	}
	if len(noGuests.Paths) != 1 || noGuests.Paths[0] != base {
		t.Errorf("unexpected paths %v", noGuests.Paths)
	}
}
