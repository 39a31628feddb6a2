package submit

import (
	"errors"
	"fmt"
)

// Phase is the orchestrator state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhasePolling
	PhaseSucceeded
	PhaseFailed
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSubmitting:
		return "SUBMITTING"
	case PhasePolling:
		return "POLLING"
	case PhaseSucceeded:
		return "SUCCEEDED"
	case PhaseFailed:
		return "FAILED"
	case PhaseTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Terminal reports whether the run is over.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseTimedOut
}

// Busy reports whether a run is in flight.
func (p Phase) Busy() bool {
	return p == PhaseSubmitting || p == PhasePolling
}

var (
	// ErrNoImages is returned when submitting an empty session.
	ErrNoImages = errors.New("no images to submit")
	// ErrEmptyPrompt is returned when every annotation is blank and a prompt
	// is required.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrTaskFailed is matched by every *TaskError.
	ErrTaskFailed = errors.New("task failed")
	// ErrTimeout is returned when the poll budget runs out.
	ErrTimeout = errors.New("processing timeout")
)

// TaskError is a task the service reported as FAILED.
type TaskError struct {
	TaskID  string
	Message string
}

func (e *TaskError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task %s failed", e.TaskID)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

// Unwrap lets errors.Is match ErrTaskFailed.
func (e *TaskError) Unwrap() error {
	return ErrTaskFailed
}
