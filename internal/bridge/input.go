package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// InputEvent is a raw key transition named by its DOM KeyboardEvent.code.
type InputEvent struct {
	Code    string
	Pressed bool
}

// ForwardFunc delivers a key transition to the guest.
type ForwardFunc func(ctx context.Context, code protocol.KeyCode, pressed bool) error

// InputDispatcher forwards key events to the guest once it is running.
// Events arriving while unbound are dropped, never queued.
type InputDispatcher struct {
	logger  *zap.Logger
	forward ForwardFunc
	// current is the code being forwarded, empty between events.
	current string

	forwarded uint64
	dropped   uint64
}

// NewInputDispatcher creates an unbound dispatcher.
func NewInputDispatcher(logger *zap.Logger) *InputDispatcher {
	return &InputDispatcher{
		logger: logger.With(zap.String("component", "input")),
	}
}

// Bind starts forwarding to fn.
func (d *InputDispatcher) Bind(fn ForwardFunc) {
	d.forward = fn
}

// Unbind stops forwarding.
func (d *InputDispatcher) Unbind() {
	d.forward = nil
}

// Bound reports whether events are being forwarded.
func (d *InputDispatcher) Bound() bool {
	return d.forward != nil
}

// Dispatch forwards ev exactly once, or drops it when unbound.
// Codes the guest does not know are forwarded as protocol.KeyUnknown; the
// name itself stays readable through Current until the forward returns.
func (d *InputDispatcher) Dispatch(ctx context.Context, ev InputEvent) error {
	if d.forward == nil {
		d.dropped++
		d.logger.Debug("Dropped key event before start",
			zap.String("code", ev.Code),
			zap.Bool("pressed", ev.Pressed),
		)
		return nil
	}
	d.forwarded++
	d.current = ev.Code
	defer func() { d.current = "" }()
	return d.forward(ctx, protocol.LookupKey(ev.Code), ev.Pressed)
}

// Current returns the code of the event being forwarded, if any.
func (d *InputDispatcher) Current() (string, bool) {
	return d.current, d.current != ""
}

// Forwarded returns the number of events handed to the guest.
func (d *InputDispatcher) Forwarded() uint64 {
	return d.forwarded
}

// Dropped returns the number of events discarded while unbound.
func (d *InputDispatcher) Dropped() uint64 {
	return d.dropped
}
