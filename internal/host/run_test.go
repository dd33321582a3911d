package host

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/fchost/internal/bridge"
	"github.com/woxQAQ/fchost/internal/wasm"
	"github.com/woxQAQ/fchost/internal/wasm/wasmtest"
	"github.com/woxQAQ/fchost/pkg/protocol"
)

// readGuest reads a guest word on the control goroutine.
func readGuest(t *testing.T, h *Host, addr uint32) uint32 {
	t.Helper()
	ch := make(chan uint32, 1)
	require.NoError(t, h.Do(func(context.Context) {
		if h.instance == nil {
			ch <- 0
			return
		}
		v, _ := h.instance.Memory().ReadUint32Le(addr)
		ch <- v
	}))
	return <-ch
}

func startLoop(t *testing.T, h *Host) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestRunDrivesFramesAndKeys(t *testing.T) {
	h, dev := newTestHost(t)
	require.NoError(t, h.Load(context.Background(), guestSource(wasmtest.Options{FramePeriodMicros: 1000})))
	startLoop(t, h)

	require.NoError(t, h.SubmitPayload("game.nes", []byte("NES")))
	require.Eventually(t, func() bool {
		return h.Status().State == bridge.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return readGuest(t, h, wasmtest.FrameCountAddr) >= 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, dev.count(), 3)

	events := []bridge.InputEvent{
		{Code: "KeyW", Pressed: true},
		{Code: "KeyW", Pressed: false},
		{Code: "Enter", Pressed: true},
	}
	for _, ev := range events {
		require.NoError(t, h.SendKey(ev))
	}
	require.Eventually(t, func() bool {
		return readGuest(t, h, wasmtest.KeyCountAddr) == uint32(len(events))
	}, 5*time.Second, 10*time.Millisecond)

	code, pressed := wasmtest.EventLogEntry(readGuest(t, h, wasmtest.EventLogAddr+4))
	assert.Equal(t, uint32(protocol.KeyW), code)
	assert.False(t, pressed)

	// A key with no numeric id still reaches the guest under its name.
	require.NoError(t, h.SendKey(bridge.InputEvent{Code: "F5", Pressed: true}))
	require.Eventually(t, func() bool {
		return readGuest(t, h, wasmtest.KeyCountAddr) == uint32(len(events)+1)
	}, 5*time.Second, 10*time.Millisecond)
	code, _ = wasmtest.EventLogEntry(readGuest(t, h, wasmtest.EventLogAddr+uint32(len(events))*4))
	assert.Equal(t, uint32(protocol.KeyUnknown), code)
	require.Equal(t, uint32(2), readGuest(t, h, wasmtest.KeyNameLenAddr))
	assert.Equal(t, uint32('F')|uint32('5')<<8, readGuest(t, h, wasmtest.KeyNameAddr)&0xffff)
}

func TestRunNoFramesBeforeStart(t *testing.T) {
	h, dev := newTestHost(t)
	require.NoError(t, h.Load(context.Background(), guestSource(wasmtest.Options{FramePeriodMicros: 1000})))
	startLoop(t, h)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, readGuest(t, h, wasmtest.FrameCountAddr))
	assert.Zero(t, dev.count())

	require.NoError(t, h.SubmitPayload("bad.nes", []byte("XYZ")))
	require.Eventually(t, func() bool {
		return h.Status().State == bridge.StateRejected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "bad rom", h.Status().Text)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, readGuest(t, h, wasmtest.FrameCountAddr))
}

func TestSubmitPayloadDisablesFileControl(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Load(context.Background(), guestSource(wasmtest.Options{})))

	var (
		mu     sync.Mutex
		states []bridge.Status
	)
	h.Subscribe(func(st bridge.Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	})

	// The loop is not running yet, so the first start stays queued.
	require.NoError(t, h.SubmitPayload("game.nes", []byte("NES")))
	st := h.Status()
	assert.Equal(t, bridge.StateStarting, st.State)
	assert.True(t, st.FileControlVisible)
	assert.False(t, st.FileControlEnabled)

	assert.ErrorIs(t, h.SubmitPayload("game.nes", []byte("NES")), ErrNotReady)
	assert.Len(t, h.tasks, 1)

	startLoop(t, h)
	seen := func() []bridge.State {
		mu.Lock()
		defer mu.Unlock()
		var got []bridge.State
		for _, st := range states {
			got = append(got, st.State)
		}
		return got
	}
	require.Eventually(t, func() bool {
		return len(seen()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []bridge.State{bridge.StateIdle, bridge.StateStarting, bridge.StateRunning}, seen())
}

func TestSubmitPayloadWhileLoading(t *testing.T) {
	h, _ := newTestHost(t)
	startLoop(t, h)

	assert.Equal(t, bridge.StateLoading, h.Status().State)
	assert.ErrorIs(t, h.SubmitPayload("game.nes", []byte("NES")), ErrNotReady)
	assert.Equal(t, bridge.StateLoading, h.Status().State)
}

func TestRequestsAfterStop(t *testing.T) {
	h, _ := newTestHost(t)
	cancel := startLoop(t, h)
	cancel()

	require.Eventually(t, func() bool {
		return h.SendKey(bridge.InputEvent{Code: "KeyW"}) == ErrStopped
	}, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, h.RequestReload(), ErrStopped)
	assert.ErrorIs(t, h.SubmitPayload("game.nes", []byte("NES")), ErrStopped)
}

func TestWatchReloadsChangedModule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.wasm")
	require.NoError(t, os.WriteFile(path, wasmtest.Guest(wasmtest.Options{}), 0o644))

	h, _ := newTestHost(t)
	require.NoError(t, h.Load(context.Background(), &wasm.FileModuleSource{Path: path}))
	startLoop(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Watch(ctx, path)

	period := func() time.Duration {
		ch := make(chan time.Duration, 1)
		require.NoError(t, h.Do(func(context.Context) { ch <- h.FramePeriod() }))
		return <-ch
	}
	require.Equal(t, 16639*time.Microsecond, period())

	changed := wasmtest.Guest(wasmtest.Options{FramePeriodMicros: 2000})
	require.Eventually(t, func() bool {
		// Rewrite each attempt in case the watcher was not yet registered.
		if err := os.WriteFile(path, changed, 0o644); err != nil {
			return false
		}
		return period() == 2*time.Millisecond
	}, 10*time.Second, 250*time.Millisecond)
}
