package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory provides bounds-checked reads of a guest's linear memory.
//
// The wrapped api.Memory is fetched from the module when the helper is built;
// helpers are meant to live for a single host call only. Slices returned by
// wazero alias guest memory and are invalidated by growth, so ReadBytes
// returns a copy.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{mem: module.Memory()}
}

// Size returns the current memory length in bytes, 0 without memory.
func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// ReadBytes reads raw bytes from Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}
