package guest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Loader reads guests from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new guest loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{
		logger: logger.With(zap.String("component", "guest-loader")),
	}
}

// LoadGuest reads the guest in dir.
func (l *Loader) LoadGuest(dir string) (*Guest, error) {
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Guest found",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("machine", manifest.Machine),
		zap.String("wasm", manifest.WasmPath()),
	)

	return &Guest{Manifest: manifest, FoundAt: time.Now()}, nil
}

// Discover loads every guest directory directly below paths. Broken guests
// are logged and skipped; finding none at all is an error.
func (l *Loader) Discover(paths []string) ([]*Guest, error) {
	var guests []*Guest
	failed := 0

	for _, basePath := range paths {
		l.logger.Debug("Scanning guest directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Guest path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(basePath, entry.Name())
			g, err := l.LoadGuest(dir)
			if err != nil {
				l.logger.Warn("Skipping guest",
					zap.String("dir", dir),
					zap.Error(err),
				)
				failed++
				continue
			}
			guests = append(guests, g)
		}
	}

	if len(guests) == 0 {
		return nil, &NoGuestsFoundError{Paths: paths}
	}
	if failed > 0 {
		l.logger.Warn("Some guests failed to load",
			zap.Int("loaded", len(guests)),
			zap.Int("failed", failed),
		)
	}

	return guests, nil
}
