// Package stage names the external stages of a conversation turn and the
// errors they fail with.
package stage

import (
	"errors"
	"fmt"
)

// Stage identifies one external collaborator of a turn.
type Stage int

const (
	Capture Stage = iota
	Transcription
	Inference
	Synthesis
	Playback
)

func (s Stage) String() string {
	switch s {
	case Capture:
		return "capture"
	case Transcription:
		return "transcription"
	case Inference:
		return "inference"
	case Synthesis:
		return "synthesis"
	case Playback:
		return "playback"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

var (
	ErrTranscriptionUnavailable = errors.New("transcription engine not found")
	ErrTranscriptionFailed      = errors.New("transcription failed")
	ErrInferenceUnreachable     = errors.New("inference server unreachable")
	// ErrInferenceMalformed is the protocol error: the server answered but
	// the reply field was missing or unreadable.
	ErrInferenceMalformed = errors.New("malformed inference response")
	ErrSynthesisFailed    = errors.New("speech synthesis failed")
	ErrPlaybackFailed     = errors.New("playback failed")
)

// Error is a failure of a single stage.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a stage error whose chain contains kind and, when the
// format uses %w, the underlying cause as well.
func Errorf(s Stage, kind error, format string, args ...any) error {
	cause := fmt.Errorf(format, args...)
	return &Error{Stage: s, Err: fmt.Errorf("%w: %w", kind, cause)}
}

// Wrap attaches a stage to err. A nil err stays nil.
func Wrap(s Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) && se.Stage == s {
		return err
	}
	return &Error{Stage: s, Err: err}
}

// Of returns the stage err belongs to.
func Of(err error) (Stage, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

// IsRecoverable reports whether a turn may continue after err. Only
// synthesis and playback failures leave the conversation usable.
func IsRecoverable(err error) bool {
	s, ok := Of(err)
	return ok && (s == Synthesis || s == Playback)
}
