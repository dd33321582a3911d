// Package host owns a guest for its whole life: it loads the module, starts
// it with a payload, drives its frames and feeds it input. Everything that
// calls into the guest runs on the goroutine executing Run.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/internal/bridge"
	"github.com/woxQAQ/fchost/internal/wasm"
	"github.com/woxQAQ/fchost/pkg/protocol"
)

// ErrNoGuest is returned when an operation needs a loaded guest.
var ErrNoGuest = errors.New("no guest loaded")

// Config holds host configuration.
type Config struct {
	// Runtime configures wazero. Nil uses wasm.DefaultRuntimeConfig.
	Runtime *wasm.RuntimeConfig

	// Session configures buffers, presenters and devices.
	Session bridge.SessionConfig

	// FramePeriod is used when the guest does not export frame_period_us.
	FramePeriod time.Duration

	// QueueSize bounds pending tasks and key events.
	QueueSize int
}

// DefaultConfig returns a config for the 272×240 guest with audio off.
func DefaultConfig() Config {
	return Config{
		Session:     bridge.DefaultSessionConfig(),
		FramePeriod: protocol.FramePeriodMicros * time.Microsecond,
		QueueSize:   64,
	}
}

type task func(ctx context.Context)

// Host runs one guest at a time.
type Host struct {
	logger *zap.Logger
	config Config

	runtime   *wasm.Runtime
	loader    *wasm.ModuleLoader
	instances *wasm.InstanceManager
	session   *bridge.Session

	// Owned by the control goroutine.
	source   wasm.ModuleSource
	instance *wasm.Instance
	period   time.Duration
	payload  []byte

	tasks chan task
	keys  chan bridge.InputEvent
	done  chan struct{}
	once  sync.Once

	// notify serializes status delivery so subscribers see changes in order.
	notify      sync.Mutex
	mu          sync.Mutex
	status      bridge.Status
	subscribers []func(bridge.Status)
}

// New creates a host and its wazero runtime.
func New(ctx context.Context, logger *zap.Logger, config Config) (*Host, error) {
	if config.FramePeriod <= 0 {
		config.FramePeriod = protocol.FramePeriodMicros * time.Microsecond
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}

	runtime, err := wasm.NewRuntime(ctx, logger, config.Runtime)
	if err != nil {
		return nil, err
	}

	h := &Host{
		logger:    logger.With(zap.String("component", "host")),
		runtime:   runtime,
		loader:    wasm.NewModuleLoader(runtime, logger),
		instances: wasm.NewInstanceManager(runtime, logger),
		period:    config.FramePeriod,
		tasks:     make(chan task, config.QueueSize),
		keys:      make(chan bridge.InputEvent, config.QueueSize),
		done:      make(chan struct{}),
		status:    bridge.LoadingStatus(""),
	}

	// Messages a running guest sets replace the status text.
	config.Session.OnGuestStatus = func(msg string) {
		st := h.Status()
		st.Text = msg
		h.setStatus(st)
	}
	h.config = config
	h.session = bridge.NewSession(logger, config.Session)

	return h, nil
}

// Load fetches, compiles and instantiates the guest from source. Any failure
// is a *wasm.LoadError and leaves the host in the failed state.
func (h *Host) Load(ctx context.Context, source wasm.ModuleSource) error {
	h.teardown(ctx)
	h.source = source
	h.setStatus(bridge.LoadingStatus(source.Name()))

	if err := h.load(ctx, source); err != nil {
		return err
	}
	h.setStatus(bridge.IdleStatus(source.Name()))
	return nil
}

// load compiles, or takes from the cache, and instantiates source without
// announcing progress. Failures are reported through fail.
func (h *Host) load(ctx context.Context, source wasm.ModuleSource) error {
	h.teardown(ctx)

	compiled, err := h.loader.LoadModule(ctx, source)
	if err != nil {
		h.fail(err)
		return err
	}

	inst, err := h.instances.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: compiled.Name,
		Imports: wasm.Imports{
			CopyPayload:    h.session.CopyPayload,
			SetFrameBuffer: h.session.SetFrameBuffer,
			SetAudioBuffer: h.session.SetAudioBuffer,
			UpdateScreen:   h.session.UpdateScreen,
			UpdateAudio:    h.session.UpdateAudio,
			SetStatus:      h.session.SetStatus,
			KeyCode:        h.session.KeyCode,
		},
	})
	if err != nil {
		err = &wasm.LoadError{Source: source.Name(), Stage: wasm.StageInstantiate, Err: err}
		h.fail(err)
		return err
	}

	h.instance = inst
	h.session.Attach(inst, func() bridge.Memory {
		if mem := inst.Memory(); mem != nil {
			return mem
		}
		return nil
	})

	h.period = h.config.FramePeriod
	if period, ok := inst.FramePeriod(ctx); ok {
		h.period = period
	}

	h.logger.Info("Guest loaded",
		zap.String("source", source.Name()),
		zap.String("instance_id", inst.ID),
		zap.Duration("frame_period", h.period),
	)
	return nil
}

// Start offers payload to the loaded guest and returns the resulting status.
// A guest that is running, or that trapped in a previous start, is replaced
// by a fresh instance first so it starts clean. A declined payload returns a
// *bridge.StartupRejection.
func (h *Host) Start(ctx context.Context, payload []byte) (bridge.Status, error) {
	if h.instance == nil {
		if h.Status().State == bridge.StateStarting {
			h.fail(ErrNoGuest)
		}
		return h.Status(), ErrNoGuest
	}
	if h.session.Running() || h.session.Faulted() {
		if err := h.reinstantiate(ctx); err != nil {
			return h.Status(), err
		}
	}

	name := h.source.Name()
	if h.Status().State != bridge.StateStarting {
		h.setStatus(bridge.StartingStatus(name))
	}
	err := h.session.Start(ctx, payload)

	var rejection *bridge.StartupRejection
	switch {
	case errors.As(err, &rejection):
		st := bridge.RejectedStatus(name, rejection.Message)
		h.setStatus(st)
		return st, err
	case err != nil:
		h.fail(err)
		return h.Status(), err
	}

	h.payload = append([]byte(nil), payload...)
	st := bridge.RunningStatus(name)
	h.setStatus(st)
	return st, nil
}

// RunFrame advances a running guest by one frame. A trap is fatal for the
// guest: it is torn down and the host enters the failed state.
func (h *Host) RunFrame(ctx context.Context) error {
	if err := h.session.RunFrame(ctx); err != nil {
		h.logger.Error("Guest trapped in run_frame", zap.Error(err))
		h.teardown(ctx)
		h.fail(fmt.Errorf("guest stopped: %w", err))
		return err
	}
	return nil
}

// Reload drops the guest and loads it again from the same source, skipping
// the compiled-module cache. If it was running, the last payload is restarted.
func (h *Host) Reload(ctx context.Context) error {
	if h.source == nil {
		return ErrNoGuest
	}
	restart := h.session.Running() && h.payload != nil
	payload := h.payload

	h.logger.Info("Reloading guest",
		zap.String("source", h.source.Name()),
		zap.Bool("restart", restart),
	)

	h.teardown(ctx)
	h.runtime.EvictCompiledModule(ctx, h.source.Name())
	if err := h.Load(ctx, h.source); err != nil {
		return err
	}
	if restart {
		if _, err := h.Start(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// reinstantiate replaces the instance with a fresh one from the cached module.
// The status is left alone.
func (h *Host) reinstantiate(ctx context.Context) error {
	h.logger.Debug("Reinstantiating guest", zap.String("source", h.source.Name()))
	return h.load(ctx, h.source)
}

// teardown releases the instance and detaches the session.
func (h *Host) teardown(ctx context.Context) {
	if h.instance == nil {
		return
	}
	stats := h.session.Stats()
	h.logger.Info("Tearing down guest",
		zap.String("instance_id", h.instance.ID),
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("frames_skipped", stats.FramesSkipped),
		zap.Uint64("audio_chunks", stats.AudioChunks),
		zap.Uint64("keys_forwarded", stats.KeysForwarded),
		zap.Uint64("keys_dropped", stats.KeysDropped),
	)
	h.session.Teardown()
	if err := h.instance.Close(ctx); err != nil {
		h.logger.Warn("Failed to close guest instance", zap.Error(err))
	}
	h.instance = nil
}

func (h *Host) fail(err error) {
	name := ""
	if h.source != nil {
		name = h.source.Name()
	}
	h.logger.Error("Guest failed", zap.String("source", name), zap.Error(err))
	h.setStatus(bridge.FailedStatus(name, err))
}

// Close tears the guest down and closes the runtime.
func (h *Host) Close(ctx context.Context) error {
	h.teardown(ctx)
	return h.runtime.Close(ctx)
}

// Session exposes the bridge session, mainly for inspection.
func (h *Host) Session() *bridge.Session {
	return h.session
}

// FramePeriod returns the current frame period.
func (h *Host) FramePeriod() time.Duration {
	return h.period
}

// Status returns the current status.
func (h *Host) Status() bridge.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Subscribe registers fn for status changes and calls it once with the
// current status before returning. That first call runs on the caller's
// goroutine; later ones run on whichever goroutine changed the status,
// usually the control goroutine. Calls never overlap. fn must not block or
// call back into the host.
func (h *Host) Subscribe(fn func(bridge.Status)) {
	h.notify.Lock()
	defer h.notify.Unlock()

	h.mu.Lock()
	h.subscribers = append(h.subscribers, fn)
	st := h.status
	h.mu.Unlock()
	fn(st)
}

func (h *Host) setStatus(st bridge.Status) {
	h.notify.Lock()
	defer h.notify.Unlock()

	h.mu.Lock()
	h.status = st
	subs := make([]func(bridge.Status), len(h.subscribers))
	copy(subs, h.subscribers)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
