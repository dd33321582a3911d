package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// AudioChunk is one render period of mono samples.
type AudioChunk struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playing time of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// AudioDevice plays chunks. Implementations must copy what they keep.
type AudioDevice interface {
	Play(ctx context.Context, chunk AudioChunk) error
}

// AudioConfig controls the audio path.
type AudioConfig struct {
	// Enabled turns on reading the guest audio buffer. Off, Present does nothing.
	Enabled      bool
	SampleRate   int
	RenderPeriod time.Duration
}

// DefaultAudioConfig returns the disabled 44.1kHz / 50ms configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:   protocol.SampleRate,
		RenderPeriod: protocol.RenderPeriodMillis * time.Millisecond,
	}
}

// AudioPresenter moves the guest audio buffer to the device.
type AudioPresenter struct {
	logger   *zap.Logger
	registry *BufferRegistry
	device   AudioDevice
	memory   *MemoryView
	config   AudioConfig

	chunk   AudioChunk
	raw     []byte
	played  uint64
	skipped uint64
}

// NewAudioPresenter creates a presenter. device may be nil.
func NewAudioPresenter(logger *zap.Logger, registry *BufferRegistry, device AudioDevice, config AudioConfig) *AudioPresenter {
	samples := protocol.ChunkSamples(config.SampleRate, int(config.RenderPeriod/time.Millisecond))
	return &AudioPresenter{
		logger:   logger.With(zap.String("component", "audio-presenter")),
		registry: registry,
		device:   device,
		config:   config,
		chunk: AudioChunk{
			Samples:    make([]float32, samples),
			SampleRate: config.SampleRate,
		},
		raw: make([]byte, samples*4),
	}
}

// Attach points the presenter at a guest's memory.
func (p *AudioPresenter) Attach(memory *MemoryView) {
	p.memory = memory
}

// Enabled reports whether Present reads anything.
func (p *AudioPresenter) Enabled() bool {
	return p.config.Enabled
}

// Played returns how many chunks reached the device.
func (p *AudioPresenter) Played() uint64 {
	return p.played
}

// Skipped returns how many chunks were dropped on error.
func (p *AudioPresenter) Skipped() uint64 {
	return p.skipped
}

// Present decodes one chunk of little-endian float32 samples at the
// registered audio offset and plays it. Disabled, it returns immediately.
func (p *AudioPresenter) Present(ctx context.Context) error {
	if !p.config.Enabled {
		return nil
	}

	offset, ok := p.registry.Offset(AudioBuffer)
	if !ok {
		p.skipped++
		return ErrNotRegistered
	}
	if p.memory == nil {
		p.skipped++
		return ErrNoMemory
	}

	view, err := p.memory.Acquire()
	if err != nil {
		p.skipped++
		return err
	}
	if err := view.CopyTo(p.raw, offset); err != nil {
		p.skipped++
		var bv *BoundsViolation
		if errors.As(err, &bv) {
			bv.Kind = AudioBuffer
		}
		return err
	}

	for i := range p.chunk.Samples {
		p.chunk.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.raw[i*4:]))
	}
	p.played++

	if p.device == nil {
		return nil
	}
	return p.device.Play(ctx, p.chunk)
}
