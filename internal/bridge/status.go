package bridge

// State is the session state shown to the user.
type State string

const (
	StateLoading  State = "loading"
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateRejected State = "rejected"
	StateFailed   State = "failed"
)

// RunningText is the status text once the guest accepted its payload.
const RunningText = "running."

// Status is what a frontend renders: a message plus the state of the file
// control used to pick a payload.
type Status struct {
	State State
	Text  string
	Guest string

	FileControlVisible bool
	FileControlEnabled bool
}

// LoadingStatus is shown while the guest module is fetched and compiled.
func LoadingStatus(guest string) Status {
	return Status{
		State:              StateLoading,
		Text:               "loading...",
		Guest:              guest,
		FileControlVisible: true,
	}
}

// IdleStatus is shown once the guest is loaded and waiting for a payload.
func IdleStatus(guest string) Status {
	return Status{
		State:              StateIdle,
		Text:               "select a file to start.",
		Guest:              guest,
		FileControlVisible: true,
		FileControlEnabled: true,
	}
}

// StartingStatus keeps the file control visible but disabled while a payload
// is offered to the guest.
func StartingStatus(guest string) Status {
	return Status{
		State:              StateStarting,
		Text:               "starting...",
		Guest:              guest,
		FileControlVisible: true,
	}
}

// RunningStatus hides the file control.
func RunningStatus(guest string) Status {
	return Status{
		State: StateRunning,
		Text:  RunningText,
		Guest: guest,
	}
}

// RejectedStatus shows the guest's message verbatim and lets the user pick
// another file.
func RejectedStatus(guest, message string) Status {
	return Status{
		State:              StateRejected,
		Text:               message,
		Guest:              guest,
		FileControlVisible: true,
		FileControlEnabled: true,
	}
}

// FailedStatus reports a fatal load error; there is nothing to pick a file for.
func FailedStatus(guest string, err error) Status {
	return Status{
		State:              StateFailed,
		Text:               err.Error(),
		Guest:              guest,
		FileControlVisible: true,
	}
}

// Running reports whether the guest has started.
func (s Status) Running() bool {
	return s.State == StateRunning
}
