package protocol

// Shared names and constants of the host/guest call surface.
// Both the host (internal/wasm, internal/bridge) and guest bindings (api/guest)
// use these so the two sides never drift apart.

// HostModule is the import module name the guest links host functions from.
const HostModule = "host"

// Host functions imported by the guest.
const (
	ImportCopyPayload    = "copy_payload"
	ImportSetFrameBuffer = "set_frame_buffer"
	ImportSetAudioBuffer = "set_audio_buffer"
	ImportUpdateScreen   = "update_screen"
	ImportUpdateAudio    = "update_audio"
	ImportSetStatus      = "set_status"
	ImportLogMessage     = "log_message"
	ImportKeyCode        = "key_code"
)

// Functions exported by the guest.
const (
	ExportStart       = "start"
	ExportOnKey       = "on_key"
	ExportRunFrame    = "run_frame"
	ExportFramePeriod = "frame_period_us"
	ExportMemory      = "memory"
	ExportInitialize  = "_initialize"
)

// GuestExports lists the guest functions the host looks up after instantiation.
var GuestExports = []string{ExportStart, ExportOnKey, ExportRunFrame, ExportFramePeriod}

// StartReady is the value the guest start export returns once it is running.
// Any other value is a rejection.
const StartReady = 1

// Display and audio constants of the Famicom guest.
const (
	ScreenWidth   = 272
	ScreenHeight  = 240
	BytesPerPixel = 4

	SampleRate = 44100
	// RenderPeriodMillis is the audio render period in milliseconds.
	RenderPeriodMillis = 50
	// FramePeriodMicros is the NTSC frame period (60.0988 Hz).
	FramePeriodMicros = 16639
)

// FrameBytes returns the size of a w×h RGBA framebuffer.
func FrameBytes(width, height int) int {
	return width * height * BytesPerPixel
}

// ChunkSamples returns the number of samples rendered per audio period.
func ChunkSamples(sampleRate, periodMillis int) int {
	return sampleRate * periodMillis / 1000
}

// LogLevel is the level argument of the log_message import.
type LogLevel uint32

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)
