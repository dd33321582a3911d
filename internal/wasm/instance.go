package wasm

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/fchost/pkg/protocol"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string

	// Host functions handed to the guest.
	Imports Imports
}

// Instance represents an instantiated guest together with the host import
// module it was linked against.
type Instance struct {
	// wazero module instances.
	module api.Module
	host   api.Module

	runtime *Runtime

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function
}

// Instantiate creates a new instance from a compiled module.
// The host import module is instantiated first so the guest can link it.
// Only one instance can be live per runtime: the import module name is fixed.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: config.InstanceID,
			Err:        fmt.Errorf("instance limit %d reached", limit),
		}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	hostFuncs := NewHostFunctions(m.logger, config.Imports)
	host, err := hostFuncs.export(m.runtime.runtime.NewHostModuleBuilder(protocol.HostModule)).
		Instantiate(ctx)
	if err != nil {
		return nil, &HostFunctionError{FunctionName: protocol.HostModule, Err: err}
	}

	// Guest stdout/stderr (WASI) goes to the log rather than the terminal.
	guestOut := zap.NewStdLog(m.logger.With(zap.String("instance_id", instanceID))).Writer()

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStdout(guestOut).
		WithStderr(guestOut).
		WithStartFunctions(protocol.ExportInitialize)

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		if closeErr := host.Close(ctx); closeErr != nil {
			m.logger.Warn("Failed to close host module", zap.Error(closeErr))
		}
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := m.cacheExportedFunctions(module)

	instance := &Instance{
		module:    module,
		host:      host,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
	}

	m.runtime.StoreInstance(instanceID, instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
		zap.Bool("has_memory", module.Memory() != nil),
	)

	return instance, nil
}

// Close closes the guest and its host module and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)
	err := i.module.Close(ctx)
	if hostErr := i.host.Close(ctx); err == nil {
		err = hostErr
	}
	return err
}

// Memory returns the guest's linear memory as it is right now, or nil.
// Callers must not keep it across guest calls.
func (i *Instance) Memory() api.Memory {
	return i.module.Memory()
}

// HasExport reports whether the guest exports the named function.
func (i *Instance) HasExport(name string) bool {
	_, ok := i.exports[name]
	return ok
}

// Start calls the guest start(payloadLen, sampleRate) -> status export.
func (i *Instance) Start(ctx context.Context, payloadLen, sampleRate uint32) (uint32, error) {
	res, err := i.call(ctx, protocol.ExportStart, uint64(payloadLen), uint64(sampleRate))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("%s returned no result", protocol.ExportStart)
	}
	return api.DecodeU32(res[0]), nil
}

// OnKey calls the guest on_key(code, pressed) export.
func (i *Instance) OnKey(ctx context.Context, code protocol.KeyCode, pressed bool) error {
	var p uint64
	if pressed {
		p = 1
	}
	_, err := i.call(ctx, protocol.ExportOnKey, uint64(code), p)
	return err
}

// RunFrame calls the guest run_frame export.
func (i *Instance) RunFrame(ctx context.Context) error {
	_, err := i.call(ctx, protocol.ExportRunFrame)
	return err
}

// FramePeriod asks the guest for its frame period. ok is false when the guest
// does not export frame_period_us or reports zero.
func (i *Instance) FramePeriod(ctx context.Context) (time.Duration, bool) {
	if !i.HasExport(protocol.ExportFramePeriod) {
		return 0, false
	}
	res, err := i.call(ctx, protocol.ExportFramePeriod)
	if err != nil || len(res) == 0 || api.DecodeU32(res[0]) == 0 {
		return 0, false
	}
	return time.Duration(api.DecodeU32(res[0])) * time.Microsecond, true
}

func (i *Instance) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}
	return fn.Call(ctx, params...)
}

// cacheExportedFunctions caches references to exported functions.
// This improves performance by avoiding repeated lookups.
func (m *InstanceManager) cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range protocol.GuestExports {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// generateInstanceID generates a unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d", time.Now().UnixNano())
}
