package bridge

import (
	"context"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// GuestCalls is the host-to-guest half of the call surface: the guest
// exports the session drives. *wasm.Instance implements it.
type GuestCalls interface {
	// Start offers the staged payload. protocol.StartReady means running.
	Start(ctx context.Context, payloadLen, sampleRate uint32) (uint32, error)
	OnKey(ctx context.Context, code protocol.KeyCode, pressed bool) error
	RunFrame(ctx context.Context) error
}
