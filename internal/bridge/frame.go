package bridge

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
)

// FrameDevice shows a finished frame. Implementations must copy what they
// keep: the image is reused for the next frame.
type FrameDevice interface {
	Present(ctx context.Context, frame *image.RGBA) error
}

// FrameSurface is the host-side RGBA surface the guest framebuffer is copied
// into. Only a FramePresenter writes to it.
type FrameSurface struct {
	img    *image.RGBA
	frames uint64
}

// NewFrameSurface creates a black width×height surface.
func NewFrameSurface(width, height int) *FrameSurface {
	return &FrameSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Image returns the surface pixels.
func (s *FrameSurface) Image() *image.RGBA {
	return s.img
}

// Extent is the number of bytes a full frame occupies in guest memory.
func (s *FrameSurface) Extent() uint32 {
	return uint32(len(s.img.Pix))
}

// Frames returns how many frames have been copied in.
func (s *FrameSurface) Frames() uint64 {
	return s.frames
}

// FramePresenter copies the guest framebuffer onto the surface on request.
type FramePresenter struct {
	logger   *zap.Logger
	registry *BufferRegistry
	surface  *FrameSurface
	device   FrameDevice
	memory   *MemoryView

	skipped uint64
}

// NewFramePresenter creates a presenter. device may be nil.
func NewFramePresenter(logger *zap.Logger, registry *BufferRegistry, surface *FrameSurface, device FrameDevice) *FramePresenter {
	return &FramePresenter{
		logger:   logger.With(zap.String("component", "frame-presenter")),
		registry: registry,
		surface:  surface,
		device:   device,
	}
}

// Attach points the presenter at a guest's memory.
func (p *FramePresenter) Attach(memory *MemoryView) {
	p.memory = memory
}

// Surface returns the surface frames are copied into.
func (p *FramePresenter) Surface() *FrameSurface {
	return p.surface
}

// Skipped returns how many frames were dropped on error.
func (p *FramePresenter) Skipped() uint64 {
	return p.skipped
}

// Present reads one frame at the registered framebuffer offset and hands the
// surface to the device. When the frame does not fit in guest memory the
// surface keeps its previous contents and a *BoundsViolation is returned.
func (p *FramePresenter) Present(ctx context.Context) error {
	offset, ok := p.registry.Offset(Framebuffer)
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
	if err := view.CopyTo(p.surface.img.Pix, offset); err != nil {
		p.skipped++
		var bv *BoundsViolation
		if errors.As(err, &bv) {
			bv.Kind = Framebuffer
		}
		return err
	}
	p.surface.frames++

	if p.device == nil {
		return nil
	}
	return p.device.Present(ctx, p.surface.img)
}
