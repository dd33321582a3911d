package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleView is returned by a View taken before the guest memory grew.
	ErrStaleView = errors.New("memory view is stale")

	// ErrViewClosed is returned once the session owning the memory is torn down.
	ErrViewClosed = errors.New("memory view is closed")

	// ErrNotRegistered is returned when the guest has not registered a buffer yet.
	ErrNotRegistered = errors.New("buffer offset not registered")

	// ErrNoMemory is returned when the guest exports no linear memory.
	ErrNoMemory = errors.New("guest exports no memory")

	// ErrNotAttached is returned when the session has no guest.
	ErrNotAttached = errors.New("no guest attached")
)

// BoundsViolation occurs when a registered buffer does not fit in guest memory.
type BoundsViolation struct {
	Kind       BufferKind
	Offset     uint32
	Length     uint32
	MemorySize uint32
}

func (e *BoundsViolation) Error() string {
	return fmt.Sprintf("%s [%d, +%d) exceeds guest memory of %d bytes",
		e.Kind, e.Offset, e.Length, e.MemorySize)
}

// StartupRejection occurs when the guest declines to start with a payload.
// Message is shown to the user verbatim.
type StartupRejection struct {
	Message string
	Result  uint32
	Err     error
}

func (e *StartupRejection) Error() string {
	return e.Message
}

func (e *StartupRejection) Unwrap() error {
	return e.Err
}
