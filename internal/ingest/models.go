package ingest

import "time"

// State is a publisher session's lifecycle state.
// Transitions: Connecting -> Publishing -> Idle <-> Publishing -> Closed.
// Idle means a liveness ping is outstanding; Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StatePublishing
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePublishing:
		return "publishing"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Chunk is one encoded media chunk received from a publisher. Sequence
// numbers are per-session and start at 1.
type Chunk struct {
	Sequence   uint64
	Keyframe   bool
	Data       []byte
	ReceivedAt time.Time
}
