package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// SessionConfig holds the devices and constants of a session.
type SessionConfig struct {
	Width, Height int
	Audio         AudioConfig

	FrameDevice FrameDevice
	AudioDevice AudioDevice

	// OnGuestStatus receives messages the guest sets while running.
	OnGuestStatus func(msg string)
}

// DefaultSessionConfig returns a 272×240 session with audio disabled.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Width:  protocol.ScreenWidth,
		Height: protocol.ScreenHeight,
		Audio:  DefaultAudioConfig(),
	}
}

// Stats counts what crossed the boundary.
type Stats struct {
	Frames        uint64
	FramesSkipped uint64
	AudioChunks   uint64
	AudioSkipped  uint64
	KeysForwarded uint64
	KeysDropped   uint64
}

// Session is the host side of one guest: its buffer registrations, memory
// view, presenters and input. Its methods named after host imports are the
// callbacks handed to the guest.
type Session struct {
	logger *zap.Logger
	config SessionConfig

	registry *BufferRegistry
	frames   *FramePresenter
	audio    *AudioPresenter
	input    *InputDispatcher

	calls   GuestCalls
	memory  *MemoryView
	running bool
	// faulted is set when start trapped or exited; the instance is unusable.
	faulted bool

	// payload is only set while the guest start export runs.
	payload   []byte
	lastGuest string
}

// NewSession creates a session with no guest attached.
func NewSession(logger *zap.Logger, config SessionConfig) *Session {
	if config.Width == 0 || config.Height == 0 {
		config.Width, config.Height = protocol.ScreenWidth, protocol.ScreenHeight
	}
	registry := NewBufferRegistry()
	return &Session{
		logger:   logger.With(zap.String("component", "bridge-session")),
		config:   config,
		registry: registry,
		frames:   NewFramePresenter(logger, registry, NewFrameSurface(config.Width, config.Height), config.FrameDevice),
		audio:    NewAudioPresenter(logger, registry, config.AudioDevice, config.Audio),
		input:    NewInputDispatcher(logger),
	}
}

// Attach connects the session to a freshly instantiated guest.
func (s *Session) Attach(calls GuestCalls, acquire func() Memory) {
	s.calls = calls
	s.memory = NewMemoryView(acquire)
	s.frames.Attach(s.memory)
	s.audio.Attach(s.memory)
}

// Start offers payload to the guest. A guest that declines, or traps, yields
// a *StartupRejection carrying the message to show. On success input is bound.
// After a trap the session is Faulted and must be reattached before retrying.
func (s *Session) Start(ctx context.Context, payload []byte) error {
	if s.calls == nil {
		return ErrNotAttached
	}

	s.payload = payload
	s.lastGuest = ""
	defer func() { s.payload = nil }()

	result, err := s.calls.Start(ctx, uint32(len(payload)), uint32(s.config.Audio.SampleRate))
	if err != nil {
		s.logger.Warn("Guest start failed", zap.Error(err))
		s.faulted = true
		return &StartupRejection{Message: err.Error(), Err: err}
	}
	if result != protocol.StartReady {
		msg := s.lastGuest
		switch {
		case msg != "":
		case result == 0:
			msg = "guest rejected payload"
		default:
			msg = fmt.Sprintf("unexpected start result %d", result)
		}
		s.logger.Info("Guest rejected payload",
			zap.Uint32("result", result),
			zap.String("message", msg),
		)
		return &StartupRejection{Message: msg, Result: result}
	}

	s.running = true
	s.input.Bind(s.calls.OnKey)
	s.logger.Info("Guest started", zap.Int("payload_bytes", len(payload)))
	return nil
}

// Running reports whether the guest accepted a payload.
func (s *Session) Running() bool {
	return s.running
}

// Faulted reports whether the guest trapped or exited inside start.
func (s *Session) Faulted() bool {
	return s.faulted
}

// RunFrame advances the guest one frame.
func (s *Session) RunFrame(ctx context.Context) error {
	if !s.running {
		return nil
	}
	return s.calls.RunFrame(ctx)
}

// Dispatch hands a key event to the input dispatcher.
func (s *Session) Dispatch(ctx context.Context, ev InputEvent) error {
	return s.input.Dispatch(ctx, ev)
}

// Teardown detaches the guest: input is unbound, registrations are
// forgotten and every memory view is revoked. The surface keeps its last frame.
func (s *Session) Teardown() {
	s.input.Unbind()
	s.registry.Reset()
	if s.memory != nil {
		s.memory.Close()
	}
	s.calls = nil
	s.running = false
	s.faulted = false
	s.payload = nil
}

// Surface returns the frame surface.
func (s *Session) Surface() *FrameSurface {
	return s.frames.Surface()
}

// Registry returns the buffer registry.
func (s *Session) Registry() *BufferRegistry {
	return s.registry
}

// Memory returns the current memory view, nil before Attach.
func (s *Session) Memory() *MemoryView {
	return s.memory
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:        s.frames.Surface().Frames(),
		FramesSkipped: s.frames.Skipped(),
		AudioChunks:   s.audio.Played(),
		AudioSkipped:  s.audio.Skipped(),
		KeysForwarded: s.input.Forwarded(),
		KeysDropped:   s.input.Dropped(),
	}
}

// KeyCode copies the name of the key being delivered to on_key into guest
// memory at dst, truncated to length. It returns the number of bytes copied,
// 0 outside of on_key or when dst is out of bounds.
func (s *Session) KeyCode(ctx context.Context, dst, length uint32) uint32 {
	code, ok := s.input.Current()
	if !ok || s.memory == nil {
		return 0
	}
	n := uint32(len(code))
	if length < n {
		n = length
	}
	view, err := s.memory.Acquire()
	if err == nil {
		err = view.Write(dst, []byte(code[:n]))
	}
	if err != nil {
		s.logger.Warn("Failed to copy key code into guest memory",
			zap.Uint32("dst", dst),
			zap.String("code", code),
			zap.Error(err),
		)
		return 0
	}
	return n
}

// CopyPayload copies the staged payload to guest memory at dst. It returns
// the number of bytes copied, 0 outside of Start or when dst is out of bounds.
func (s *Session) CopyPayload(ctx context.Context, dst, length uint32) uint32 {
	if s.payload == nil || s.memory == nil {
		return 0
	}
	n := uint32(len(s.payload))
	if length < n {
		n = length
	}
	view, err := s.memory.Acquire()
	if err == nil {
		err = view.Write(dst, s.payload[:n])
	}
	if err != nil {
		s.logger.Warn("Failed to copy payload into guest memory",
			zap.Uint32("dst", dst),
			zap.Uint32("length", n),
			zap.Error(err),
		)
		return 0
	}
	return n
}

// SetFrameBuffer registers the guest framebuffer offset.
func (s *Session) SetFrameBuffer(ctx context.Context, offset uint32) {
	s.logger.Debug("Framebuffer registered", zap.Uint32("offset", offset))
	s.registry.Register(Framebuffer, offset)
}

// SetAudioBuffer registers the guest audio buffer offset.
func (s *Session) SetAudioBuffer(ctx context.Context, offset uint32) {
	s.logger.Debug("Audio buffer registered", zap.Uint32("offset", offset))
	s.registry.Register(AudioBuffer, offset)
}

// UpdateScreen presents the framebuffer. Failures skip the frame.
func (s *Session) UpdateScreen(ctx context.Context) {
	if err := s.frames.Present(ctx); err != nil {
		s.logPresentError("frame", err)
	}
}

// UpdateAudio presents the audio buffer. Failures skip the chunk.
func (s *Session) UpdateAudio(ctx context.Context) {
	if err := s.audio.Present(ctx); err != nil {
		s.logPresentError("audio", err)
	}
}

// SetStatus records a guest message. During Start it becomes the rejection
// text; afterwards it is passed to OnGuestStatus.
func (s *Session) SetStatus(ctx context.Context, msg string) {
	s.lastGuest = msg
	if s.running && s.config.OnGuestStatus != nil {
		s.config.OnGuestStatus(msg)
	}
}

func (s *Session) logPresentError(what string, err error) {
	var bv *BoundsViolation
	if errors.As(err, &bv) {
		s.logger.Debug("Skipped presentation: buffer out of bounds",
			zap.String("buffer", what),
			zap.Uint32("offset", bv.Offset),
			zap.Uint32("length", bv.Length),
			zap.Uint32("memory_size", bv.MemorySize),
		)
		return
	}
	s.logger.Debug("Skipped presentation",
		zap.String("buffer", what),
		zap.Error(err),
	)
}
