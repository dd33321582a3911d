package wasmtest

import (
	"github.com/woxQAQ/fchost/pkg/protocol"
)

// Memory layout of the canned guest.
const (
	GuestPages = 5

	StatusAddr     = 16
	StartLogAddr   = 32
	KeyNameAddr    = 400
	KeyNameCap     = 32
	KeyCodeAddr    = 512
	KeyPressedAddr = 516
	KeyCountAddr   = 520
	FrameCountAddr = 524
	SampleRateAddr = 528
	KeyNameLenAddr = 532
	EventLogAddr   = 600
	EventLogCap    = (1024 - EventLogAddr) / 4

	FrameOffset   = 1024
	AudioOffset   = 262144
	PayloadOffset = 280000

	// PayloadMagic must be the first payload byte or start rejects it.
	PayloadMagic = 'N'
)

// RejectMessage is the status the guest reports for a payload it refuses.
const RejectMessage = "bad rom"

const startLog = "starting"

// Options tweak the canned guest.
type Options struct {
	// FramePeriodMicros, when non-zero, adds a frame_period_us export.
	FramePeriodMicros uint32
	// MaxPages caps memory growth when non-zero.
	MaxPages uint32
	// ExitCode, when non-zero, makes start call WASI proc_exit with it for
	// a one-byte payload.
	ExitCode uint32
}

// Guest returns a guest module implementing the whole call surface:
//
//	start(len, rate)   registers framebuffer 1024 and audio buffer 262144,
//	                   pulls the payload to 280000 and accepts it when the
//	                   first byte is 'N'; otherwise reports "bad rom".
//	                   With ExitCode set a one-byte payload exits instead.
//	on_key(code, p)    records the last event and appends code|p<<16 to a log;
//	                   pulls the key name to 400 and its length to 532.
//	run_frame()        bumps a frame counter, calls update_screen and update_audio.
//	grow(n) -> old     grows memory by n pages.
func Guest(opts Options) []byte {
	i32 := []ValType{I32}
	m := New()

	setFrameBuffer := m.Import(protocol.HostModule, protocol.ImportSetFrameBuffer, i32, nil)
	setAudioBuffer := m.Import(protocol.HostModule, protocol.ImportSetAudioBuffer, i32, nil)
	updateScreen := m.Import(protocol.HostModule, protocol.ImportUpdateScreen, nil, nil)
	updateAudio := m.Import(protocol.HostModule, protocol.ImportUpdateAudio, nil, nil)
	copyPayload := m.Import(protocol.HostModule, protocol.ImportCopyPayload, []ValType{I32, I32}, i32)
	setStatus := m.Import(protocol.HostModule, protocol.ImportSetStatus, []ValType{I32, I32}, nil)
	logMessage := m.Import(protocol.HostModule, protocol.ImportLogMessage, []ValType{I32, I32, I32}, nil)
	keyCode := m.Import(protocol.HostModule, protocol.ImportKeyCode, []ValType{I32, I32}, i32)
	var procExit uint32
	if opts.ExitCode > 0 {
		procExit = m.Import("wasi_snapshot_preview1", "proc_exit", i32, nil)
	}

	reject := [][]byte{
		I32Const(StatusAddr), I32Const(int32(len(RejectMessage))), Call(setStatus),
		I32Const(0), Return(),
	}

	var start [][]byte
	start = append(start,
		I32Const(SampleRateAddr), LocalGet(1), I32Store(),
		I32Const(int32(protocol.LogInfo)), I32Const(StartLogAddr), I32Const(int32(len(startLog))), Call(logMessage),
		I32Const(FrameOffset), Call(setFrameBuffer),
		I32Const(AudioOffset), Call(setAudioBuffer),
	)
	if opts.ExitCode > 0 {
		start = append(start,
			LocalGet(0), I32Const(1), I32Eq(), If(),
			I32Const(int32(opts.ExitCode)), Call(procExit),
			End(),
		)
	}
	start = append(start,
		LocalGet(0), I32Eqz(), If(),
	)
	start = append(start, reject...)
	start = append(start,
		End(),
		I32Const(PayloadOffset), LocalGet(0), Call(copyPayload), Drop(),
		I32Const(PayloadOffset), I32Load8U(), I32Const(PayloadMagic), I32Ne(), If(),
	)
	start = append(start, reject...)
	start = append(start,
		End(),
		I32Const(protocol.StartReady),
	)
	startIdx := m.Func([]ValType{I32, I32}, i32, nil, start...)

	onKey := m.Func([]ValType{I32, I32}, nil, nil,
		I32Const(KeyCodeAddr), LocalGet(0), I32Store(),
		I32Const(KeyPressedAddr), LocalGet(1), I32Store(),
		// log[count] = code | pressed<<16
		I32Const(EventLogAddr), I32Const(KeyCountAddr), I32Load(), I32Const(2), I32Shl(), I32Add(),
		LocalGet(0), LocalGet(1), I32Const(16), I32Shl(), I32Or(),
		I32Store(),
		I32Const(KeyCountAddr), I32Const(KeyCountAddr), I32Load(), I32Const(1), I32Add(), I32Store(),
		I32Const(KeyNameLenAddr), I32Const(KeyNameAddr), I32Const(KeyNameCap), Call(keyCode), I32Store(),
	)

	runFrame := m.Func(nil, nil, nil,
		I32Const(FrameCountAddr), I32Const(FrameCountAddr), I32Load(), I32Const(1), I32Add(), I32Store(),
		Call(updateScreen),
		Call(updateAudio),
	)

	grow := m.Func(i32, i32, nil,
		LocalGet(0), MemoryGrow(),
	)

	m.Export(protocol.ExportStart, startIdx)
	m.Export(protocol.ExportOnKey, onKey)
	m.Export(protocol.ExportRunFrame, runFrame)
	m.Export("grow", grow)

	if opts.FramePeriodMicros > 0 {
		period := m.Func(nil, i32, nil, I32Const(int32(opts.FramePeriodMicros)))
		m.Export(protocol.ExportFramePeriod, period)
	}

	m.Memory(GuestPages, protocol.ExportMemory)
	if opts.MaxPages > 0 {
		m.MaxPages(opts.MaxPages)
	}
	m.Data(StatusAddr, []byte(RejectMessage))
	m.Data(StartLogAddr, []byte(startLog))

	return m.Bytes()
}

// MissingImportGuest imports a host function the host does not provide, so
// instantiation fails.
func MissingImportGuest() []byte {
	m := New()
	m.Import(protocol.HostModule, "missing_fn", nil, nil)
	m.Memory(1, protocol.ExportMemory)
	return m.Bytes()
}

// Malformed returns bytes that fail compilation.
func Malformed() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0xff}
}

// EventLogEntry decodes one on_key log entry.
func EventLogEntry(v uint32) (code uint32, pressed bool) {
	return v & 0xffff, v>>16 != 0
}
