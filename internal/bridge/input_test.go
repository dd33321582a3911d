package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

func TestInputDispatcherForwardsInOrder(t *testing.T) {
	d := NewInputDispatcher(zap.NewNop())
	guest := &fakeGuest{}
	d.Bind(guest.OnKey)

	events := []InputEvent{
		{Code: "KeyW", Pressed: true},
		{Code: "KeyJ", Pressed: true},
		{Code: "KeyW", Pressed: false},
		{Code: "ArrowUp", Pressed: true},
		{Code: "KeyJ", Pressed: false},
	}
	for _, ev := range events {
		require.NoError(t, d.Dispatch(context.Background(), ev))
	}

	require.Len(t, guest.keys, len(events))
	for i, ev := range events {
		assert.Equal(t, protocol.LookupKey(ev.Code), guest.keys[i].code, "event %d", i)
		assert.Equal(t, ev.Pressed, guest.keys[i].pressed, "event %d", i)
	}
	assert.Equal(t, uint64(len(events)), d.Forwarded())
	assert.Zero(t, d.Dropped())
}

func TestInputDispatcherDropsWhileUnbound(t *testing.T) {
	d := NewInputDispatcher(zap.NewNop())
	guest := &fakeGuest{}

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Dispatch(context.Background(), InputEvent{Code: "Space", Pressed: true}))
	}
	assert.False(t, d.Bound())
	assert.Equal(t, uint64(4), d.Dropped())

	// Binding later does not replay dropped events.
	d.Bind(guest.OnKey)
	assert.Empty(t, guest.keys)

	require.NoError(t, d.Dispatch(context.Background(), InputEvent{Code: "Space", Pressed: false}))
	require.Len(t, guest.keys, 1)
	assert.Equal(t, protocol.KeySpace, guest.keys[0].code)

	d.Unbind()
	require.NoError(t, d.Dispatch(context.Background(), InputEvent{Code: "Space", Pressed: true}))
	assert.Len(t, guest.keys, 1)
	assert.Equal(t, uint64(5), d.Dropped())
}

func TestInputDispatcherUnknownCode(t *testing.T) {
	d := NewInputDispatcher(zap.NewNop())
	guest := &fakeGuest{}
	d.Bind(guest.OnKey)

	var during string
	guest.onKey = func(context.Context, protocol.KeyCode, bool) { during, _ = d.Current() }

	require.NoError(t, d.Dispatch(context.Background(), InputEvent{Code: "F13", Pressed: true}))
	require.Len(t, guest.keys, 1)
	assert.Equal(t, protocol.KeyUnknown, guest.keys[0].code)
	assert.Equal(t, "F13", during)

	_, ok := d.Current()
	assert.False(t, ok)
}
