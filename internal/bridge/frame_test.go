package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

func newFramePresenter(mem *fakeMemory, dev FrameDevice) (*FramePresenter, *BufferRegistry) {
	reg := NewBufferRegistry()
	p := NewFramePresenter(zap.NewNop(), reg, NewFrameSurface(protocol.ScreenWidth, protocol.ScreenHeight), dev)
	p.Attach(NewMemoryView(mem.provider()))
	return p, reg
}

func TestFramePresenterInBounds(t *testing.T) {
	mem := newFakeMemory(5)
	dev := &fakeFrameDevice{}
	p, reg := newFramePresenter(mem, dev)

	extent := p.Surface().Extent()
	require.Equal(t, uint32(protocol.FrameBytes(protocol.ScreenWidth, protocol.ScreenHeight)), extent)

	const offset = 1024
	for i := uint32(0); i < extent; i++ {
		mem.buf[offset+i] = byte(i * 7)
	}
	// Bytes around the frame must not leak in.
	mem.buf[offset-1] = 0xaa
	mem.buf[offset+extent] = 0xbb

	reg.Register(Framebuffer, offset)
	require.NoError(t, p.Present(context.Background()))

	assert.Equal(t, mem.buf[offset:offset+extent], p.Surface().Image().Pix)
	require.Len(t, dev.frames, 1)
	assert.Equal(t, mem.buf[offset:offset+extent], dev.frames[0])
	assert.Equal(t, uint64(1), p.Surface().Frames())
	assert.Equal(t, uint64(0), p.Skipped())
}

func TestFramePresenterOutOfBounds(t *testing.T) {
	mem := newFakeMemory(4)
	dev := &fakeFrameDevice{}
	p, reg := newFramePresenter(mem, dev)

	pix := p.Surface().Image().Pix
	for i := range pix {
		pix[i] = 0x5a
	}
	for i := range mem.buf {
		mem.buf[i] = 0xff
	}

	offset := mem.Size() - 100
	reg.Register(Framebuffer, offset)

	err := p.Present(context.Background())
	var bv *BoundsViolation
	require.ErrorAs(t, err, &bv)
	assert.Equal(t, Framebuffer, bv.Kind)
	assert.Equal(t, offset, bv.Offset)
	assert.Equal(t, p.Surface().Extent(), bv.Length)
	assert.Equal(t, mem.Size(), bv.MemorySize)

	for i, b := range pix {
		if b != 0x5a {
			t.Fatalf("surface byte %d modified: %#x", i, b)
		}
	}
	assert.Empty(t, dev.frames)
	assert.Equal(t, uint64(1), p.Skipped())
	assert.Equal(t, uint64(0), p.Surface().Frames())
}

func TestFramePresenterNotRegistered(t *testing.T) {
	mem := newFakeMemory(5)
	dev := &fakeFrameDevice{}
	p, _ := newFramePresenter(mem, dev)

	assert.ErrorIs(t, p.Present(context.Background()), ErrNotRegistered)
	assert.Zero(t, mem.reads)
	assert.Empty(t, dev.frames)
}

func TestFramePresenterAfterGrowth(t *testing.T) {
	mem := newFakeMemory(4)
	p, reg := newFramePresenter(mem, nil)

	// Registered past the end, then the guest grows into it.
	reg.Register(Framebuffer, mem.Size())
	var bv *BoundsViolation
	require.ErrorAs(t, p.Present(context.Background()), &bv)

	mem.grow(4)
	mem.buf[4*pageSize] = 0x42
	require.NoError(t, p.Present(context.Background()))
	assert.Equal(t, byte(0x42), p.Surface().Image().Pix[0])
}
