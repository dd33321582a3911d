// Package display holds the frontends a host can run behind: a terminal UI,
// a native window and a headless snapshot writer. Each one is the
// bridge.FrameDevice of its host and drives the host through a Controller.
package display

import (
	"context"
	"image"
	"sync"

	"github.com/woxQAQ/fchost/internal/bridge"
)

// Controller is the part of the host a frontend talks to. All methods are
// safe to call from any goroutine.
type Controller interface {
	SubmitPayload(name string, payload []byte) error
	SendKey(ev bridge.InputEvent) error
	Subscribe(fn func(bridge.Status))
}

// Frontend presents frames and runs the user surface until ctx is done or
// the user quits.
type Frontend interface {
	bridge.FrameDevice
	Run(ctx context.Context, ctl Controller) error
}

// frameStore keeps a copy of the latest frame for a UI goroutine.
type frameStore struct {
	mu    sync.Mutex
	img   *image.RGBA
	count uint64
}

func (s *frameStore) store(frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil || s.img.Bounds() != frame.Bounds() {
		s.img = image.NewRGBA(frame.Bounds())
	}
	copy(s.img.Pix, frame.Pix)
	s.count++
}

// with calls fn with the latest frame, or not at all before the first one.
func (s *frameStore) with(fn func(img *image.RGBA)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img != nil {
		fn(s.img)
	}
}

func (s *frameStore) frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// notifier coalesces wakeups for a UI goroutine without ever blocking the
// sender.
type notifier chan struct{}

func newNotifier() notifier {
	return make(notifier, 1)
}

func (n notifier) notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}
