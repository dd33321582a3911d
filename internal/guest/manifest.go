package guest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/fchost/internal/config"
)

// ManifestFile is the manifest name inside a guest directory.
const ManifestFile = "manifest.yaml"

// Manifest describes a guest: which module to load and the constants the
// host must agree with it on.
type Manifest struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Machine      string        `yaml:"machine"`
	Description  string        `yaml:"description"`
	Wasm         WasmConfig    `yaml:"wasm"`
	Screen       ScreenConfig  `yaml:"screen"`
	Audio        AudioConfig   `yaml:"audio"`
	FramePeriod  time.Duration `yaml:"frame_period"`
	Capabilities []string      `yaml:"capabilities"`
	Author       string        `yaml:"author"`
	License      string        `yaml:"license"`

	dir string
}

// WasmConfig locates the guest module.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB
}

// ScreenConfig is the framebuffer size. Zero keeps the host default.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// AudioConfig is the audio format. Zero keeps the host default.
type AudioConfig struct {
	SampleRate   int           `yaml:"sample_rate"`
	RenderPeriod time.Duration `yaml:"render_period"`
}

// Capabilities a guest may declare.
const (
	CapVideo = "video"
	CapAudio = "audio"
	CapInput = "input"
	CapWASI  = "wasi"
)

var validMachines = map[string]bool{
	"famicom": true,
	"generic": true,
}

var validCaps = map[string]bool{
	CapVideo: true,
	CapAudio: true,
	CapInput: true,
	CapWASI:  true,
}

// ParseManifest reads and validates dir/manifest.yaml.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields and that the module exists.
func (m *Manifest) Validate() error {
	invalid := func(field, msg string) error {
		return &ManifestValidationError{Path: m.Path(), Field: field, Message: msg}
	}

	switch {
	case m.Name == "":
		return invalid("name", "name is required")
	case m.Version == "":
		return invalid("version", "version is required")
	case m.Machine == "":
		return invalid("machine", "machine is required")
	case !validMachines[m.Machine]:
		return invalid("machine", fmt.Sprintf("unsupported machine: %s (must be one of: famicom, generic)", m.Machine))
	case m.Wasm.File == "":
		return invalid("wasm.file", "wasm.file is required")
	case m.Screen.Width < 0 || m.Screen.Height < 0:
		return invalid("screen", "width and height must not be negative")
	case (m.Screen.Width == 0) != (m.Screen.Height == 0):
		return invalid("screen", "width and height must be set together")
	case m.Audio.SampleRate < 0:
		return invalid("audio.sample_rate", "must not be negative")
	case m.Audio.RenderPeriod < 0:
		return invalid("audio.render_period", "must not be negative")
	case m.FramePeriod < 0:
		return invalid("frame_period", "must not be negative")
	case len(m.Capabilities) == 0:
		return invalid("capabilities", "at least one capability is required")
	}

	for _, c := range m.Capabilities {
		if !validCaps[c] {
			return invalid("capabilities", fmt.Sprintf("unknown capability: %s (must be one of: video, audio, input, wasi)", c))
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// HasCapability reports whether the guest declares c.
func (m *Manifest) HasCapability(c string) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Apply copies the manifest's module and constants into cfg.
// Settings the manifest leaves at zero are not touched.
func (m *Manifest) Apply(cfg *config.HostConfig) {
	cfg.Guest.Module = m.WasmPath()
	if m.Screen.Width > 0 {
		cfg.Display.Width = m.Screen.Width
		cfg.Display.Height = m.Screen.Height
	}
	if m.FramePeriod > 0 {
		cfg.Display.FramePeriod = m.FramePeriod
	}
	if m.Audio.SampleRate > 0 {
		cfg.Audio.SampleRate = m.Audio.SampleRate
	}
	if m.Audio.RenderPeriod > 0 {
		cfg.Audio.RenderPeriod = m.Audio.RenderPeriod
	}
	if !m.HasCapability(CapAudio) {
		cfg.Audio.Enabled = false
	}
	if m.HasCapability(CapWASI) {
		cfg.Wasm.WASI = true
	}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
