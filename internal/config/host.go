package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Frontends.
const (
	FrontendTerminal = "terminal"
	FrontendWindow   = "window"
	FrontendHeadless = "headless"
)

// EnvPrefix prefixes environment overrides, e.g. FCHOST_GUEST_MODULE.
const EnvPrefix = "FCHOST"

type HostConfig struct {
	Guest      GuestConfig   `mapstructure:"guest"`
	GuestPaths []string      `mapstructure:"guest_paths"`
	Payload    string        `mapstructure:"payload"`
	Frontend   string        `mapstructure:"frontend"`
	LogLevel   string        `mapstructure:"log_level"`
	LogFile    string        `mapstructure:"log_file"`
	Watch      bool          `mapstructure:"watch"`
	Display    DisplayConfig `mapstructure:"display"`
	Input      InputConfig   `mapstructure:"input"`
	Audio      AudioConfig   `mapstructure:"audio"`
	Wasm       WasmConfig    `mapstructure:"wasm"`
}

// GuestConfig selects the guest module.
type GuestConfig struct {
	// Path or http(s) URL of the .wasm file.
	Module string `mapstructure:"module"`
	// Directory holding a manifest.yaml; overrides Module.
	ManifestDir string `mapstructure:"manifest_dir"`
	// Name of a guest discovered in guest_paths; overrides Module.
	Name string `mapstructure:"name"`
}

// DisplayConfig holds screen settings.
type DisplayConfig struct {
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	FramePeriod time.Duration `mapstructure:"frame_period"`
	// Integer window scale.
	Scale int `mapstructure:"scale"`
	// Headless frontend: where and how often to write PNG snapshots.
	SnapshotDir   string `mapstructure:"snapshot_dir"`
	SnapshotEvery int    `mapstructure:"snapshot_every"`
}

// InputConfig holds keyboard settings.
type InputConfig struct {
	// Terminals report no key releases; one is sent this long after a press.
	ReleaseDelay time.Duration `mapstructure:"release_delay"`
}

// AudioConfig holds audio settings. Audio is off unless Enabled.
type AudioConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SampleRate   int           `mapstructure:"sample_rate"`
	RenderPeriod time.Duration `mapstructure:"render_period"`
	// WAV file receiving the samples; empty discards them.
	WavPath string `mapstructure:"wav_path"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Keep DWARF info so guest traps report source positions.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Provide wasi_snapshot_preview1 to the guest.
	WASI bool `mapstructure:"wasi"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
}

func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("guest.module", "go_main.wasm")
	v.SetDefault("guest.manifest_dir", "")
	v.SetDefault("guest.name", "")
	v.SetDefault("guest_paths", []string{"./guests"})
	v.SetDefault("payload", "")
	v.SetDefault("frontend", FrontendTerminal)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "fchost.log")
	v.SetDefault("watch", false)

	// Display defaults
	v.SetDefault("display.width", 272)
	v.SetDefault("display.height", 240)
	v.SetDefault("display.frame_period", 16639*time.Microsecond)
	v.SetDefault("display.scale", 2)
	v.SetDefault("display.snapshot_dir", "./snapshots")
	v.SetDefault("display.snapshot_every", 60)

	v.SetDefault("input.release_delay", 150*time.Millisecond)

	// Audio defaults
	v.SetDefault("audio.enabled", false)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.render_period", 50*time.Millisecond)
	v.SetDefault("audio.wav_path", "")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 1024) // 64MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.wasi", true)
	v.SetDefault("wasm.max_instances", 4)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidationError occurs when a setting is out of range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// Validate checks ranges and enums.
func (c *HostConfig) Validate() error {
	switch c.Frontend {
	case FrontendTerminal, FrontendWindow, FrontendHeadless:
	default:
		return &ValidationError{Field: "frontend", Message: fmt.Sprintf("unknown frontend %q", c.Frontend)}
	}
	if c.Guest.Module == "" && c.Guest.ManifestDir == "" && c.Guest.Name == "" {
		return &ValidationError{Field: "guest.module", Message: "no guest module configured"}
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return &ValidationError{Field: "display", Message: "width and height must be positive"}
	}
	if c.Display.FramePeriod <= 0 {
		return &ValidationError{Field: "display.frame_period", Message: "must be positive"}
	}
	if c.Display.Scale < 1 {
		return &ValidationError{Field: "display.scale", Message: "must be at least 1"}
	}
	if c.Display.SnapshotEvery < 0 {
		return &ValidationError{Field: "display.snapshot_every", Message: "must not be negative"}
	}
	if c.Input.ReleaseDelay < 0 {
		return &ValidationError{Field: "input.release_delay", Message: "must not be negative"}
	}
	if c.Audio.SampleRate <= 0 {
		return &ValidationError{Field: "audio.sample_rate", Message: "must be positive"}
	}
	if c.Audio.RenderPeriod < time.Millisecond {
		return &ValidationError{Field: "audio.render_period", Message: "must be at least 1ms"}
	}
	if c.Wasm.MaxInstances < 1 {
		return &ValidationError{Field: "wasm.max_instances", Message: "must be at least 1"}
	}
	return nil
}
