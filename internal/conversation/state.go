package conversation

import "fmt"

// State is the turn state machine position.
type State int

const (
	Idle State = iota
	Listening
	Transcribing
	Inferring
	Synthesizing
	Speaking
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Transcribing:
		return "transcribing"
	case Inferring:
		return "inferring"
	case Synthesizing:
		return "synthesizing"
	case Speaking:
		return "speaking"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StatusUpdater is an interface for reporting progress (e.g., the console)
type StatusUpdater interface {
	SetState(State)
	// Said is called once per appended history entry.
	Said(Message)
	// Warn reports a failure the run survives.
	Warn(error)
}

// SpeechFailurePolicy decides what a synthesis or playback failure does
// to the run.
type SpeechFailurePolicy int

const (
	// ContinueOnSpeechFailure reports the failure and listens again.
	ContinueOnSpeechFailure SpeechFailurePolicy = iota
	// AbortOnSpeechFailure ends the run with the stage error.
	AbortOnSpeechFailure
)

// ParseSpeechFailurePolicy maps "continue" and "abort".
func ParseSpeechFailurePolicy(s string) (SpeechFailurePolicy, error) {
	switch s {
	case "", "continue":
		return ContinueOnSpeechFailure, nil
	case "abort":
		return AbortOnSpeechFailure, nil
	default:
		return 0, fmt.Errorf("unknown speech failure policy %q", s)
	}
}
