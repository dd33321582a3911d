package display

import (
	"context"
	"image"
	"image/draw"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/woxQAQ/fchost/internal/bridge"
)

// WindowConfig configures the window frontend.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
	Scale  int
}

// Window shows frames in a native window. Unlike a terminal it reports real
// key releases.
type Window struct {
	logger *zap.Logger
	config WindowConfig

	frames frameStore
	redraw notifier
}

type (
	updateEvent struct{}
	quitEvent   struct{}
)

// NewWindow creates the window frontend. The window opens in Run.
func NewWindow(logger *zap.Logger, config WindowConfig) *Window {
	if config.Scale < 1 {
		config.Scale = 1
	}
	if config.Title == "" {
		config.Title = "fchost"
	}
	return &Window{
		logger: logger.With(zap.String("component", "frontend")),
		config: config,
		redraw: newNotifier(),
	}
}

// Present stores a copy of frame for the next paint.
func (w *Window) Present(_ context.Context, frame *image.RGBA) error {
	w.frames.store(frame)
	w.redraw.notify()
	return nil
}

// Run opens the window and blocks until it is closed or ctx is done. It must
// be called from the main goroutine.
func (w *Window) Run(ctx context.Context, ctl Controller) error {
	var runErr error
	driver.Main(func(s screen.Screen) {
		runErr = w.run(ctx, s, ctl)
	})
	return runErr
}

func (w *Window) run(ctx context.Context, s screen.Screen, ctl Controller) error {
	frameSize := image.Point{X: w.config.Width, Y: w.config.Height}

	win, err := s.NewWindow(&screen.NewWindowOptions{
		Title:  w.config.Title,
		Width:  frameSize.X * w.config.Scale,
		Height: frameSize.Y * w.config.Scale,
	})
	if err != nil {
		return err
	}
	defer win.Release()

	buf, err := s.NewBuffer(frameSize)
	if err != nil {
		return err
	}
	defer buf.Release()

	tex, err := s.NewTexture(frameSize)
	if err != nil {
		return err
	}
	defer tex.Release()

	ctl.Subscribe(func(st bridge.Status) {
		w.logger.Info("Status", zap.String("state", string(st.State)), zap.String("text", st.Text))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		// Publishing at most at 60Hz keeps paint events from piling up.
		t := time.NewTicker(time.Second / 60)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				win.Send(quitEvent{})
				return
			case <-stop:
				return
			case <-t.C:
				select {
				case <-w.redraw:
					win.Send(updateEvent{})
				default:
				}
			}
		}
	}()

	var sz size.Event
	for {
		switch e := win.NextEvent().(type) {
		case quitEvent:
			return nil

		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return nil
			}

		case size.Event:
			sz = e
			if sz.WidthPx+sz.HeightPx == 0 {
				return nil
			}

		case key.Event:
			// DirNone is an auto-repeat and forwards as another press.
			ev := bridge.InputEvent{Code: windowCode(e.Code), Pressed: e.Direction != key.DirRelease}
			if err := ctl.SendKey(ev); err != nil {
				w.logger.Debug("Key not sent", zap.String("code", ev.Code), zap.Error(err))
			}

		case updateEvent, paint.Event:
			w.frames.with(func(img *image.RGBA) {
				if img.Bounds().Size() == frameSize {
					copy(buf.RGBA().Pix, img.Pix)
				}
			})
			tex.Upload(image.Point{}, buf, buf.Bounds())
			win.Scale(sz.Bounds(), tex, tex.Bounds(), draw.Src, nil)
			win.Publish()

		case error:
			w.logger.Warn("Window error", zap.Error(e))
		}
	}
}
