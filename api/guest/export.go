//go:build wasip1

package guest

import "github.com/woxQAQ/fchost/pkg/protocol"

// A guest exports these functions with //go:wasmexport:
//
//	//go:wasmexport start
//	func start(length, sampleRate uint32) uint32
//
// start receives the payload length and the host sample rate. The guest
// pulls the payload with CopyPayload, registers its buffers and returns
// Ready to accept it. Any other result rejects the payload; the last
// SetStatus message becomes the status shown to the user.
//
//	//go:wasmexport on_key
//	func onKey(code uint32, pressed uint32)
//
// on_key receives numeric key ids (see pkg/protocol) with pressed 1 or 0.
// KeyCode returns the key's name while on_key runs.
//
//	//go:wasmexport run_frame
//	func runFrame()
//
// run_frame advances one frame and usually ends with UpdateScreen.
//
//	//go:wasmexport frame_period_us
//	func framePeriod() uint32
//
// frame_period_us is optional and overrides the host frame period.
//
// Pointers and lengths are uint32 because Wasm linear memory is 32-bit.

// Ready is the start result that accepts the payload.
const Ready uint32 = protocol.StartReady
