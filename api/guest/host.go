//go:build wasip1

// Package guest is the guest side of the fchost ABI for modules built with
// GOOS=wasip1 GOARCH=wasm -buildmode=c-shared.
//
// Buffers handed to the host must stay alive and in place for the life of
// the module; package-level arrays are the simplest way to get that.
package guest

import (
	"unsafe"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

//go:wasmimport host copy_payload
func copyPayload(dst, length uint32) uint32

//go:wasmimport host set_frame_buffer
func setFrameBuffer(offset uint32)

//go:wasmimport host set_audio_buffer
func setAudioBuffer(offset uint32)

//go:wasmimport host update_screen
func updateScreen()

//go:wasmimport host update_audio
func updateAudio()

//go:wasmimport host set_status
func setStatus(ptr, length uint32)

//go:wasmimport host log_message
func logMessage(level, ptr, length uint32)

//go:wasmimport host key_code
func keyCode(dst, length uint32) uint32

func addr(p unsafe.Pointer) uint32 {
	return uint32(uintptr(p))
}

// CopyPayload copies up to len(dst) payload bytes into dst and returns how
// many were copied. Only meaningful inside start.
func CopyPayload(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	return int(copyPayload(addr(unsafe.Pointer(unsafe.SliceData(dst))), uint32(len(dst))))
}

// KeyCode copies up to len(dst) bytes of the DOM code name of the current
// key event, such as "KeyW" or "F5", into dst and returns how many were
// copied. Only meaningful inside on_key; keys without a numeric id arrive as
// protocol.KeyUnknown and are told apart this way.
func KeyCode(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	return int(keyCode(addr(unsafe.Pointer(unsafe.SliceData(dst))), uint32(len(dst))))
}

// SetFrameBuffer registers fb as the RGBA framebuffer. It must hold
// width*height*4 bytes.
func SetFrameBuffer(fb []byte) {
	setFrameBuffer(addr(unsafe.Pointer(unsafe.SliceData(fb))))
}

// SetAudioBuffer registers buf as the float32 audio buffer of one render
// period.
func SetAudioBuffer(buf []float32) {
	setAudioBuffer(addr(unsafe.Pointer(unsafe.SliceData(buf))))
}

// UpdateScreen asks the host to present the framebuffer now.
func UpdateScreen() {
	updateScreen()
}

// UpdateAudio asks the host to play the audio buffer now.
func UpdateAudio() {
	updateAudio()
}

// SetStatus sets the text shown to the user. Call it before returning a
// non-ready result from start to explain the rejection.
func SetStatus(msg string) {
	if msg == "" {
		setStatus(0, 0)
		return
	}
	setStatus(addr(unsafe.Pointer(unsafe.StringData(msg))), uint32(len(msg)))
}

// Log writes msg to the host log at level.
func Log(level protocol.LogLevel, msg string) {
	if msg == "" {
		return
	}
	logMessage(uint32(level), addr(unsafe.Pointer(unsafe.StringData(msg))), uint32(len(msg)))
}
