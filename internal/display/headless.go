package display

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/woxQAQ/fchost/internal/bridge"
)

// HeadlessConfig configures the headless frontend.
type HeadlessConfig struct {
	// Dir receives frame-NNNNNN.png files.
	Dir string
	// Every writes one snapshot per that many frames. Zero writes none.
	Every int
	// Scale enlarges snapshots by an integer factor.
	Scale int
}

// Headless runs without a user surface and snapshots frames to PNG files.
type Headless struct {
	logger *zap.Logger
	config HeadlessConfig

	frames  uint64
	written []string
	scaled  *image.RGBA
}

// NewHeadless creates the headless frontend.
func NewHeadless(logger *zap.Logger, config HeadlessConfig) *Headless {
	if config.Scale < 1 {
		config.Scale = 1
	}
	return &Headless{
		logger: logger.With(zap.String("component", "frontend")),
		config: config,
	}
}

// Present counts frames and writes every Nth one to disk. It runs on the
// host's control goroutine.
func (h *Headless) Present(_ context.Context, frame *image.RGBA) error {
	h.frames++
	if h.config.Every <= 0 || h.frames%uint64(h.config.Every) != 0 {
		return nil
	}

	if err := os.MkdirAll(h.config.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	img := frame
	if h.config.Scale > 1 {
		b := frame.Bounds()
		if h.scaled == nil || h.scaled.Bounds().Dx() != b.Dx()*h.config.Scale {
			h.scaled = image.NewRGBA(image.Rect(0, 0, b.Dx()*h.config.Scale, b.Dy()*h.config.Scale))
		}
		draw.NearestNeighbor.Scale(h.scaled, h.scaled.Bounds(), frame, b, draw.Src, nil)
		img = h.scaled
	}

	path := filepath.Join(h.config.Dir, fmt.Sprintf("frame-%06d.png", h.frames))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	h.written = append(h.written, path)
	h.logger.Debug("Snapshot written", zap.String("path", path))
	return nil
}

// Snapshots returns the files written so far. Control goroutine only.
func (h *Headless) Snapshots() []string {
	return h.written
}

// Run logs status changes until ctx is done.
func (h *Headless) Run(ctx context.Context, ctl Controller) error {
	ctl.Subscribe(func(st bridge.Status) {
		h.logger.Info("Status", zap.String("state", string(st.State)), zap.String("text", st.Text))
	})
	<-ctx.Done()
	return nil
}
