package host

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/internal/bridge"
)

var (
	// ErrStopped is returned when a request reaches a host whose loop has exited.
	ErrStopped = errors.New("host stopped")
	// ErrNotReady is returned when a payload is submitted while the host is
	// loading, failed or already starting one.
	ErrNotReady = errors.New("host not ready for a payload")
)

// Run is the control loop. It executes queued tasks, forwards key events
// and, while the guest is running, calls run_frame once per frame period.
// It returns when ctx is done.
func (h *Host) Run(ctx context.Context) error {
	defer h.once.Do(func() { close(h.done) })

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
		period time.Duration
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	h.logger.Info("Control loop started")
	for {
		switch running := h.session.Running(); {
		case running && (ticker == nil || period != h.period):
			stopTicker()
			period = h.period
			ticker = time.NewTicker(period)
			tick = ticker.C
			h.logger.Debug("Frame ticker started", zap.Duration("period", period))
		case !running && ticker != nil:
			stopTicker()
			h.logger.Debug("Frame ticker stopped")
		}

		select {
		case <-ctx.Done():
			h.logger.Info("Control loop stopped")
			return nil
		case t := <-h.tasks:
			t(ctx)
		case ev := <-h.keys:
			if err := h.session.Dispatch(ctx, ev); err != nil {
				h.logger.Warn("Failed to forward key event",
					zap.String("code", ev.Code),
					zap.Error(err),
				)
			}
		case <-tick:
			h.RunFrame(ctx)
		}
	}
}

// Do queues fn to run on the control goroutine.
func (h *Host) Do(fn func(ctx context.Context)) error {
	if h.stopped() {
		return ErrStopped
	}
	select {
	case h.tasks <- fn:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// SubmitPayload queues a start with payload, as picking a file does. The
// host enters the starting state at once, which disables the file control,
// so a second submit before the first is handled returns ErrNotReady.
func (h *Host) SubmitPayload(name string, payload []byte) error {
	if h.stopped() {
		return ErrStopped
	}
	prev, ok := h.claimStart()
	if !ok {
		return ErrNotReady
	}

	err := h.Do(func(ctx context.Context) {
		h.logger.Info("Payload submitted",
			zap.String("name", name),
			zap.Int("size_bytes", len(payload)),
		)
		if _, err := h.Start(ctx, payload); err != nil {
			h.logger.Info("Payload not started", zap.String("name", name), zap.Error(err))
		}
	})
	if err != nil {
		h.setStatus(prev)
	}
	return err
}

// claimStart moves the host to the starting state if it accepts a payload
// now, returning the status it replaced.
func (h *Host) claimStart() (bridge.Status, bool) {
	h.notify.Lock()
	defer h.notify.Unlock()

	h.mu.Lock()
	prev := h.status
	if !prev.FileControlEnabled && !prev.Running() {
		h.mu.Unlock()
		return prev, false
	}
	st := bridge.StartingStatus(prev.Guest)
	h.status = st
	subs := make([]func(bridge.Status), len(h.subscribers))
	copy(subs, h.subscribers)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return prev, true
}

// SendKey queues a key event. Events sent before the guest is running are
// dropped by the dispatcher.
func (h *Host) SendKey(ev bridge.InputEvent) error {
	if h.stopped() {
		return ErrStopped
	}
	select {
	case h.keys <- ev:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// RequestReload queues a reload of the guest.
func (h *Host) RequestReload() error {
	return h.Do(func(ctx context.Context) {
		if err := h.Reload(ctx); err != nil {
			h.logger.Warn("Reload failed", zap.Error(err))
		}
	})
}

func (h *Host) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
