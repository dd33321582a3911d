package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferRegistryLastWriteWins(t *testing.T) {
	r := NewBufferRegistry()

	_, ok := r.Offset(Framebuffer)
	assert.False(t, ok)

	r.Register(Framebuffer, 1024)
	r.Register(Framebuffer, 4096)
	r.Register(AudioBuffer, 0)

	off, ok := r.Offset(Framebuffer)
	assert.True(t, ok)
	assert.Equal(t, uint32(4096), off)

	// Offset zero is a valid registration.
	off, ok = r.Offset(AudioBuffer)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), off)

	r.Reset()
	_, ok = r.Offset(Framebuffer)
	assert.False(t, ok)
	_, ok = r.Offset(AudioBuffer)
	assert.False(t, ok)
}

func TestBufferKindString(t *testing.T) {
	assert.Equal(t, "framebuffer", Framebuffer.String())
	assert.Equal(t, "audio buffer", AudioBuffer.String())
	assert.Equal(t, "unknown buffer", BufferKind(7).String())
}
