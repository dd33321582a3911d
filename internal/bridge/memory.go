// Package bridge moves frames, audio and input between the host and a guest's
// linear memory.
//
// Nothing here locks: a session and everything it owns is driven from the
// single goroutine that calls into the guest.
package bridge

// Memory is the part of a guest's linear memory the bridge touches.
// wazero's api.Memory satisfies it.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// MemoryView hands out views of guest memory that cannot outlive it.
//
// The underlying memory is re-acquired through the provider on every access.
// A change in size means the guest grew its memory; it bumps the epoch, and
// every View taken in an earlier epoch is refused from then on.
type MemoryView struct {
	acquire func() Memory
	epoch   uint64
	size    uint32
	closed  bool
}

// NewMemoryView creates a view source backed by acquire.
func NewMemoryView(acquire func() Memory) *MemoryView {
	return &MemoryView{acquire: acquire}
}

// Acquire returns a View over the memory as it is now.
func (m *MemoryView) Acquire() (*View, error) {
	mem, err := m.current()
	if err != nil {
		return nil, err
	}
	return &View{owner: m, epoch: m.epoch, size: mem.Size()}, nil
}

// Epoch returns how many times the memory has been seen to change size.
func (m *MemoryView) Epoch() uint64 {
	return m.epoch
}

// Close revokes every view. It is idempotent.
func (m *MemoryView) Close() {
	m.closed = true
	m.acquire = nil
}

// Closed reports whether Close has been called.
func (m *MemoryView) Closed() bool {
	return m.closed
}

func (m *MemoryView) current() (Memory, error) {
	if m.closed {
		return nil, ErrViewClosed
	}
	mem := m.acquire()
	if mem == nil {
		return nil, ErrNoMemory
	}
	if size := mem.Size(); size != m.size {
		if m.size != 0 {
			m.epoch++
		}
		m.size = size
	}
	return mem, nil
}

// View is a bounds-checked window on guest memory valid for one epoch.
type View struct {
	owner *MemoryView
	epoch uint64
	size  uint32
}

// Len returns the memory length in bytes when the view was taken.
func (v *View) Len() uint32 {
	return v.size
}

// Valid reports whether the view may still be used.
func (v *View) Valid() bool {
	_, err := v.memory()
	return err == nil
}

// Read returns a copy of length bytes at offset.
func (v *View) Read(offset, length uint32) ([]byte, error) {
	if err := v.check(offset, int(length)); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if err := v.CopyTo(out, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyTo fills dst from guest memory starting at offset. On error dst is
// left untouched.
func (v *View) CopyTo(dst []byte, offset uint32) error {
	mem, err := v.memory()
	if err != nil {
		return err
	}
	length := uint32(len(dst))
	if err := v.check(offset, len(dst)); err != nil {
		return err
	}
	src, ok := mem.Read(offset, length)
	if !ok {
		return &BoundsViolation{Offset: offset, Length: length, MemorySize: v.size}
	}
	copy(dst, src)
	return nil
}

// Write copies data into guest memory at offset.
func (v *View) Write(offset uint32, data []byte) error {
	mem, err := v.memory()
	if err != nil {
		return err
	}
	if err := v.check(offset, len(data)); err != nil {
		return err
	}
	if !mem.Write(offset, data) {
		return &BoundsViolation{Offset: offset, Length: uint32(len(data)), MemorySize: v.size}
	}
	return nil
}

func (v *View) memory() (Memory, error) {
	mem, err := v.owner.current()
	if err != nil {
		return nil, err
	}
	if v.owner.epoch != v.epoch {
		return nil, ErrStaleView
	}
	return mem, nil
}

func (v *View) check(offset uint32, length int) error {
	if uint64(offset)+uint64(length) > uint64(v.size) {
		return &BoundsViolation{Offset: offset, Length: uint32(length), MemorySize: v.size}
	}
	return nil
}
