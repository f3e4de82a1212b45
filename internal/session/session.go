package session

import (
	"fmt"
	"time"
)

// State is the lifecycle phase of a recording session.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateStopping
	StateCompleted
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// live reports whether the state holds the capture device or is about to.
func (s State) live() bool {
	return s == StateAcquiring || s == StateRecording || s == StateStopping
}

// Result is the deliverable of a completed session: the assembled artifact
// plus its duration metadata. The caller is responsible for transporting it
// to the enrollment/verification backend.
type Result struct {
	Artifact   []byte
	MediaType  string
	DurationMs int64
}

// TooShortError rejects a stop request that arrives before the configured
// minimum duration. The session keeps recording; the caller may retry the
// stop later or reset.
type TooShortError struct {
	Elapsed time.Duration
	Min     time.Duration
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("sample too short: recorded %s, need at least %s",
		e.Elapsed.Round(time.Millisecond), e.Min)
}

// Snapshot is the externally observable view of a session, published on
// every transition.
type Snapshot struct {
	ID      string
	State   State
	Elapsed time.Duration
	Err     error
}
