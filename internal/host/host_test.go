package host

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/fchost/internal/bridge"
	"github.com/woxQAQ/fchost/internal/wasm"
	"github.com/woxQAQ/fchost/internal/wasm/wasmtest"
	"github.com/woxQAQ/fchost/pkg/protocol"
)

type recordingDevice struct {
	mu     sync.Mutex
	frames []*image.RGBA
}

func (d *recordingDevice) Present(_ context.Context, frame *image.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := image.NewRGBA(frame.Rect)
	copy(cp.Pix, frame.Pix)
	d.frames = append(d.frames, cp)
	return nil
}

func (d *recordingDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func newTestHost(t *testing.T) (*Host, *recordingDevice) {
	t.Helper()
	ctx := context.Background()

	dev := &recordingDevice{}
	cfg := DefaultConfig()
	cfg.Session.FrameDevice = dev

	h, err := New(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close(ctx) })
	return h, dev
}

func guestSource(opts wasmtest.Options) wasm.ModuleSource {
	return &wasm.MemoryModuleSource{ModuleName: "guest.wasm", Data: wasmtest.Guest(opts)}
}

func TestHostFramebufferEndToEnd(t *testing.T) {
	h, dev := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	_, err := h.Start(ctx, []byte("NES\x1a"))
	require.NoError(t, err)

	off, ok := h.Session().Registry().Offset(bridge.Framebuffer)
	require.True(t, ok)
	require.Equal(t, uint32(1024), off)

	pattern := []byte{0x12, 0x34, 0x56, 0xff}
	require.True(t, h.instance.Memory().Write(1024, pattern))

	require.NoError(t, h.RunFrame(ctx))

	img := h.Session().Surface().Image()
	assert.Equal(t, image.Rect(0, 0, protocol.ScreenWidth, protocol.ScreenHeight), img.Rect)
	assert.Equal(t, pattern, img.Pix[0:4])
	c := img.RGBAAt(0, 0)
	assert.Equal(t, [4]uint8{0x12, 0x34, 0x56, 0xff}, [4]uint8{c.R, c.G, c.B, c.A})

	require.Equal(t, 1, dev.count())
	assert.Equal(t, pattern, dev.frames[0].Pix[0:4])
}

func TestHostStartStatus(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h, _ := newTestHost(t)
		ctx := context.Background()
		require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))

		idle := h.Status()
		assert.Equal(t, bridge.StateIdle, idle.State)
		assert.True(t, idle.FileControlVisible)
		assert.True(t, idle.FileControlEnabled)

		st, err := h.Start(ctx, []byte("N"))
		require.NoError(t, err)
		assert.Equal(t, bridge.StateRunning, st.State)
		assert.Equal(t, "running.", st.Text)
		assert.False(t, st.FileControlVisible)
		assert.Equal(t, st, h.Status())
	})

	t.Run("rejected", func(t *testing.T) {
		h, _ := newTestHost(t)
		ctx := context.Background()
		require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))

		st, err := h.Start(ctx, []byte("not a rom"))
		var rej *bridge.StartupRejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, bridge.StateRejected, st.State)
		assert.Equal(t, "bad rom", st.Text)
		assert.True(t, st.FileControlVisible)
		assert.True(t, st.FileControlEnabled)
		assert.False(t, h.Session().Running())

		// The user may pick another file.
		st, err = h.Start(ctx, []byte("NES"))
		require.NoError(t, err)
		assert.Equal(t, bridge.StateRunning, st.State)
	})
}

func TestHostStartAfterGuestExit(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()
	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{ExitCode: 2})))
	first := h.instance.ID

	st, err := h.Start(ctx, []byte("x"))
	var rej *bridge.StartupRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, bridge.StateRejected, st.State)
	assert.Contains(t, st.Text, "exit_code(2)")
	assert.True(t, st.FileControlEnabled)
	assert.True(t, h.Session().Faulted())

	// The exited instance is replaced before the next payload is offered.
	st, err = h.Start(ctx, []byte("NES"))
	require.NoError(t, err)
	assert.Equal(t, bridge.StateRunning, st.State)
	assert.NotEqual(t, first, h.instance.ID)
	assert.False(t, h.Session().Faulted())

	got, ok := h.instance.Memory().Read(wasmtest.PayloadOffset, 3)
	require.True(t, ok)
	assert.Equal(t, "NES", string(got))
	require.NoError(t, h.RunFrame(ctx))
}

func TestHostLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		source wasm.ModuleSource
		stage  wasm.LoadStage
	}{
		{"malformed", &wasm.MemoryModuleSource{ModuleName: "bad.wasm", Data: wasmtest.Malformed()}, wasm.StageCompile},
		{"missing import", &wasm.MemoryModuleSource{ModuleName: "imports.wasm", Data: wasmtest.MissingImportGuest()}, wasm.StageInstantiate},
		{"missing file", &wasm.FileModuleSource{Path: filepath.Join(os.TempDir(), "fchost-does-not-exist.wasm")}, wasm.StageFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHost(t)
			ctx := context.Background()

			err := h.Load(ctx, tt.source)
			var loadErr *wasm.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.stage, loadErr.Stage)

			st := h.Status()
			assert.Equal(t, bridge.StateFailed, st.State)
			assert.Equal(t, err.Error(), st.Text)
			assert.False(t, st.FileControlEnabled)

			_, err = h.Start(ctx, []byte("N"))
			assert.ErrorIs(t, err, ErrNoGuest)
		})
	}
}

func TestHostFramePeriod(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	assert.Equal(t, 16639*time.Microsecond, h.FramePeriod())

	require.NoError(t, h.Load(ctx, &wasm.MemoryModuleSource{
		ModuleName: "fast.wasm",
		Data:       wasmtest.Guest(wasmtest.Options{FramePeriodMicros: 5000}),
	}))
	assert.Equal(t, 5*time.Millisecond, h.FramePeriod())
}

func TestHostReloadRestartsPayload(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	_, err := h.Start(ctx, []byte("NES"))
	require.NoError(t, err)
	first := h.instance.ID

	require.NoError(t, h.Reload(ctx))
	require.NotNil(t, h.instance)
	assert.NotEqual(t, first, h.instance.ID)
	assert.True(t, h.Session().Running())
	assert.Equal(t, bridge.StateRunning, h.Status().State)

	got, ok := h.instance.Memory().Read(wasmtest.PayloadOffset, 3)
	require.True(t, ok)
	assert.Equal(t, "NES", string(got))
}

func TestHostReloadIdle(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.Reload(ctx), ErrNoGuest)

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	require.NoError(t, h.Reload(ctx))
	assert.False(t, h.Session().Running())
	assert.Equal(t, bridge.StateIdle, h.Status().State)
}

func TestHostStartWhileRunningReinstantiates(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	_, err := h.Start(ctx, []byte("NA"))
	require.NoError(t, err)
	require.NoError(t, h.instance.OnKey(ctx, protocol.KeyW, true))

	_, err = h.Start(ctx, []byte("NB"))
	require.NoError(t, err)

	count, _ := h.instance.Memory().ReadUint32Le(wasmtest.KeyCountAddr)
	assert.Zero(t, count, "a fresh instance has seen no keys")
	got, _ := h.instance.Memory().Read(wasmtest.PayloadOffset, 2)
	assert.Equal(t, "NB", string(got))
}

func TestHostSubscribe(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	var states []bridge.State
	h.Subscribe(func(st bridge.Status) { states = append(states, st.State) })

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	_, err := h.Start(ctx, []byte("x"))
	require.Error(t, err)
	_, err = h.Start(ctx, []byte("N"))
	require.NoError(t, err)

	assert.Equal(t, []bridge.State{
		bridge.StateLoading, // initial
		bridge.StateLoading,
		bridge.StateIdle,
		bridge.StateStarting,
		bridge.StateRejected,
		bridge.StateStarting,
		bridge.StateRunning,
	}, states)
}

func TestHostClose(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, guestSource(wasmtest.Options{})))
	require.NoError(t, h.Close(ctx))
	assert.Nil(t, h.instance)
	assert.True(t, h.runtime.IsClosed())

	mem := h.Session().Memory()
	require.NotNil(t, mem)
	assert.True(t, mem.Closed())
}
