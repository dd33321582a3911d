package bridge

import (
	"context"
	"image"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

const pageSize = 65536

// fakeMemory is a growable byte slice standing in for guest memory.
type fakeMemory struct {
	buf   []byte
	reads int
}

func newFakeMemory(pages int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, pages*pageSize)}
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Read(offset, n uint32) ([]byte, bool) {
	m.reads++
	if uint64(offset)+uint64(n) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset : offset+n], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) grow(pages int) {
	m.buf = append(m.buf, make([]byte, pages*pageSize)...)
}

func (m *fakeMemory) provider() func() Memory {
	return func() Memory { return m }
}

type fakeFrameDevice struct {
	frames [][]byte
}

func (d *fakeFrameDevice) Present(_ context.Context, frame *image.RGBA) error {
	d.frames = append(d.frames, append([]byte(nil), frame.Pix...))
	return nil
}

type fakeAudioDevice struct {
	chunks []AudioChunk
}

func (d *fakeAudioDevice) Play(_ context.Context, chunk AudioChunk) error {
	d.chunks = append(d.chunks, AudioChunk{
		Samples:    append([]float32(nil), chunk.Samples...),
		SampleRate: chunk.SampleRate,
	})
	return nil
}

type keyCall struct {
	code    protocol.KeyCode
	pressed bool
}

// fakeGuest implements GuestCalls; its hooks may call back into the session.
type fakeGuest struct {
	start  func(ctx context.Context, payloadLen, sampleRate uint32) (uint32, error)
	onKey  func(ctx context.Context, code protocol.KeyCode, pressed bool)
	keys   []keyCall
	frames int
}

func (g *fakeGuest) Start(ctx context.Context, payloadLen, sampleRate uint32) (uint32, error) {
	if g.start == nil {
		return protocol.StartReady, nil
	}
	return g.start(ctx, payloadLen, sampleRate)
}

func (g *fakeGuest) OnKey(ctx context.Context, code protocol.KeyCode, pressed bool) error {
	g.keys = append(g.keys, keyCall{code, pressed})
	if g.onKey != nil {
		g.onKey(ctx, code, pressed)
	}
	return nil
}

func (g *fakeGuest) RunFrame(context.Context) error {
	g.frames++
	return nil
}
