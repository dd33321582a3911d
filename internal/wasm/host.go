package wasm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// Imports is the capability set a guest receives at instantiation: the host
// functions it may call. Nil entries become no-ops.
type Imports struct {
	// CopyPayload writes the staged payload into guest memory at dst and
	// returns the number of bytes written.
	CopyPayload func(ctx context.Context, dst, length uint32) uint32

	// Buffer registration.
	SetFrameBuffer func(ctx context.Context, offset uint32)
	SetAudioBuffer func(ctx context.Context, offset uint32)

	// Presentation triggers.
	UpdateScreen func(ctx context.Context)
	UpdateAudio  func(ctx context.Context)

	// SetStatus records a user-facing message, typically a start rejection.
	SetStatus func(ctx context.Context, msg string)

	// KeyCode writes the DOM code name of the key event being delivered to
	// on_key into guest memory at dst and returns the number of bytes written.
	KeyCode func(ctx context.Context, dst, length uint32) uint32
}

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger  *zap.Logger
	imports Imports
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger, imports Imports) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger:  logger.With(zap.String("component", "wasm-host")),
		imports: imports,
	}
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := NewMemory(mod).ReadBytes(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	switch protocol.LogLevel(level) {
	case protocol.LogDebug:
		h.logger.Debug(string(msg))
	case protocol.LogInfo:
		h.logger.Info(string(msg))
	case protocol.LogWarn:
		h.logger.Warn(string(msg))
	case protocol.LogError:
		h.logger.Error(string(msg))
	default:
		h.logger.Info(string(msg))
	}
}

// copyPayload lets the guest pull the staged payload into a buffer it owns.
// Signature: copy_payload(dst, length) -> copied
func (h *HostFunctionsImpl) copyPayload(ctx context.Context, mod api.Module, dst uint32, length uint32) uint32 {
	if h.imports.CopyPayload == nil {
		return 0
	}
	return h.imports.CopyPayload(ctx, dst, length)
}

// keyCode lets on_key pull the name of the key it was called for.
// Signature: key_code(dst, length) -> copied
func (h *HostFunctionsImpl) keyCode(ctx context.Context, mod api.Module, dst uint32, length uint32) uint32 {
	if h.imports.KeyCode == nil {
		return 0
	}
	return h.imports.KeyCode(ctx, dst, length)
}

func (h *HostFunctionsImpl) setFrameBuffer(ctx context.Context, mod api.Module, offset uint32) {
	if h.imports.SetFrameBuffer != nil {
		h.imports.SetFrameBuffer(ctx, offset)
	}
}

func (h *HostFunctionsImpl) setAudioBuffer(ctx context.Context, mod api.Module, offset uint32) {
	if h.imports.SetAudioBuffer != nil {
		h.imports.SetAudioBuffer(ctx, offset)
	}
}

func (h *HostFunctionsImpl) updateScreen(ctx context.Context, mod api.Module) {
	if h.imports.UpdateScreen != nil {
		h.imports.UpdateScreen(ctx)
	}
}

func (h *HostFunctionsImpl) updateAudio(ctx context.Context, mod api.Module) {
	if h.imports.UpdateAudio != nil {
		h.imports.UpdateAudio(ctx)
	}
}

// setStatus reads a UTF-8 message from guest memory.
// Signature: set_status(ptr, length)
func (h *HostFunctionsImpl) setStatus(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	msg, ok := NewMemory(mod).ReadBytes(ptr, length)
	if !ok {
		h.logger.Warn("Failed to read status message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}
	if h.imports.SetStatus != nil {
		h.imports.SetStatus(ctx, string(msg))
	}
}

// export registers the host functions on the builder under their import names.
func (h *HostFunctionsImpl) export(builder wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	builder.NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(protocol.ImportLogMessage)

	builder.NewFunctionBuilder().
		WithFunc(h.copyPayload).
		WithParameterNames("dst", "length").
		Export(protocol.ImportCopyPayload)

	builder.NewFunctionBuilder().
		WithFunc(h.keyCode).
		WithParameterNames("dst", "length").
		Export(protocol.ImportKeyCode)

	builder.NewFunctionBuilder().
		WithFunc(h.setFrameBuffer).
		WithParameterNames("offset").
		Export(protocol.ImportSetFrameBuffer)

	builder.NewFunctionBuilder().
		WithFunc(h.setAudioBuffer).
		WithParameterNames("offset").
		Export(protocol.ImportSetAudioBuffer)

	builder.NewFunctionBuilder().
		WithFunc(h.updateScreen).
		Export(protocol.ImportUpdateScreen)

	builder.NewFunctionBuilder().
		WithFunc(h.updateAudio).
		Export(protocol.ImportUpdateAudio)

	builder.NewFunctionBuilder().
		WithFunc(h.setStatus).
		WithParameterNames("ptr", "length").
		Export(protocol.ImportSetStatus)

	return builder
}
