package bridge

// BufferKind names a guest buffer the host reads from.
type BufferKind int

const (
	Framebuffer BufferKind = iota
	AudioBuffer
)

func (k BufferKind) String() string {
	switch k {
	case Framebuffer:
		return "framebuffer"
	case AudioBuffer:
		return "audio buffer"
	default:
		return "unknown buffer"
	}
}

// BufferRegistry records where the guest keeps its buffers. Offsets are
// checked against memory only when a presenter reads them.
type BufferRegistry struct {
	offsets map[BufferKind]uint32
}

// NewBufferRegistry creates an empty registry.
func NewBufferRegistry() *BufferRegistry {
	return &BufferRegistry{offsets: make(map[BufferKind]uint32)}
}

// Register records offset for kind, replacing any earlier registration.
func (r *BufferRegistry) Register(kind BufferKind, offset uint32) {
	r.offsets[kind] = offset
}

// Offset returns the registered offset for kind.
func (r *BufferRegistry) Offset(kind BufferKind) (uint32, bool) {
	off, ok := r.offsets[kind]
	return off, ok
}

// Reset forgets every registration.
func (r *BufferRegistry) Reset() {
	clear(r.offsets)
}
