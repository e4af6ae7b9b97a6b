package conversation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/audio"
	"github.com/petems/voiceloop/internal/metrics"
	"github.com/petems/voiceloop/internal/stage"
)

const (
	userInputFile      = "user_input.wav"
	assistantWAVFile   = "assistant_response.wav"
	defaultExitKeyword = "exit"
)

// Recorder captures one utterance into a WAV file.
type Recorder interface {
	Record(ctx context.Context, path string) (audio.Recording, error)
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Responder produces the assistant's reply to the full history.
type Responder interface {
	Chat(ctx context.Context, history []Message) (string, error)
}

// Synthesizer renders text to a WAV file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, wavPath string) error
}

// ReplySink receives every assistant reply once it is in the history.
type ReplySink interface {
	Reply(text string) error
}

type Config struct {
	Recorder    Recorder
	Transcriber Transcriber
	Responder   Responder
	Synthesizer Synthesizer
	Player      audio.Playback

	ReplySink ReplySink        // Optional - can be nil
	Status    StatusUpdater    // Optional - can be nil
	Metrics   *metrics.Metrics // Optional - can be nil

	// WorkDir holds the recordings of the current turn.
	WorkDir string
	// ExitKeyword ends the run when the transcript contains it, ignoring
	// case. Defaults to "exit".
	ExitKeyword     string
	OnSpeechFailure SpeechFailurePolicy
	Logger          zerolog.Logger
}

// Pipeline runs conversation turns: listen, transcribe, infer, synthesize
// and speak. One goroutine drives it; State and History may be read from
// others.
type Pipeline struct {
	rec     Recorder
	stt     Transcriber
	llm     Responder
	tts     Synthesizer
	player  audio.Playback
	replies ReplySink
	status  StatusUpdater
	metrics *metrics.Metrics

	workDir  string
	keyword  string
	onSpeech SpeechFailurePolicy
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	history History
}

func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Recorder == nil:
		return nil, errors.New("conversation: recorder is required")
	case cfg.Transcriber == nil:
		return nil, errors.New("conversation: transcriber is required")
	case cfg.Responder == nil:
		return nil, errors.New("conversation: responder is required")
	case cfg.Synthesizer == nil:
		return nil, errors.New("conversation: synthesizer is required")
	case cfg.Player == nil:
		return nil, errors.New("conversation: player is required")
	case cfg.WorkDir == "":
		return nil, errors.New("conversation: work dir is required")
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	keyword := strings.ToLower(strings.TrimSpace(cfg.ExitKeyword))
	if keyword == "" {
		keyword = defaultExitKeyword
	}

	return &Pipeline{
		rec:      cfg.Recorder,
		stt:      cfg.Transcriber,
		llm:      cfg.Responder,
		tts:      cfg.Synthesizer,
		player:   cfg.Player,
		replies:  cfg.ReplySink,
		status:   cfg.Status,
		metrics:  cfg.Metrics,
		workDir:  cfg.WorkDir,
		keyword:  keyword,
		onSpeech: cfg.OnSpeechFailure,
		log:      cfg.Logger.With().Str("session", uuid.NewString()).Logger(),
	}, nil
}

// Run plays turns until the exit keyword is heard or a turn fails. The
// returned error names the failing stage.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info().Str("exit_keyword", p.keyword).Msg("Conversation started")
	for {
		state, err := p.Turn(ctx)
		if err != nil {
			return err
		}
		if state == Stopped {
			p.log.Info().Int("messages", p.history.Len()).Msg("Conversation ended")
			return nil
		}
	}
}

// Turn runs one listen to speak cycle and returns the state it ends in:
// Idle to continue or Stopped after the exit keyword. Capture,
// transcription and inference errors are returned as is. Synthesis and
// playback errors are returned only under AbortOnSpeechFailure.
func (p *Pipeline) Turn(ctx context.Context) (State, error) {
	log := p.log.With().Str("turn", uuid.NewString()).Logger()

	if p.State() == Stopped {
		return Stopped, nil
	}

	userWAV := filepath.Join(p.workDir, userInputFile)

	p.setState(Listening)
	var recording audio.Recording
	err := p.timed(stage.Capture, func() (err error) {
		recording, err = p.rec.Record(ctx, userWAV)
		return err
	})
	if err != nil {
		return p.fail(log, err)
	}
	p.metrics.ObserveRecording(recording.Duration)
	log.Debug().Dur("duration", recording.Duration).Msg("Captured")

	p.setState(Transcribing)
	var text string
	err = p.timed(stage.Transcription, func() (err error) {
		text, err = p.stt.Transcribe(ctx, userWAV)
		if err == nil && strings.TrimSpace(text) == "" {
			err = stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed, "empty transcript")
		}
		return err
	})
	if err != nil {
		return p.fail(log, err)
	}
	text = strings.TrimSpace(text)

	if strings.Contains(strings.ToLower(text), p.keyword) {
		log.Info().Str("text", text).Msg("Exit keyword heard")
		p.setState(Stopped)
		p.metrics.TurnFinished(metrics.OutcomeExited)
		return Stopped, nil
	}

	p.append(User, text)
	log.Info().Str("text", text).Msg("User")

	p.setState(Inferring)
	var reply string
	err = p.timed(stage.Inference, func() (err error) {
		reply, err = p.llm.Chat(ctx, p.history.Messages())
		return err
	})
	if err != nil {
		return p.fail(log, err)
	}

	// The reply belongs in the history whether or not it can be spoken.
	p.append(Assistant, reply)
	log.Info().Str("text", reply).Msg("Assistant")

	if p.replies != nil {
		if err := p.replies.Reply(reply); err != nil {
			log.Warn().Err(err).Msg("Reply sink failed")
			if p.status != nil {
				p.status.Warn(err)
			}
		}
	}

	return p.speak(ctx, log, reply)
}

func (p *Pipeline) speak(ctx context.Context, log zerolog.Logger, reply string) (State, error) {
	responseWAV := filepath.Join(p.workDir, assistantWAVFile)

	p.setState(Synthesizing)
	err := p.timed(stage.Synthesis, func() error {
		return p.tts.Synthesize(ctx, reply, responseWAV)
	})
	if err != nil {
		return p.speechFailed(log, err)
	}

	p.setState(Speaking)
	err = p.timed(stage.Playback, func() error {
		return p.player.Play(ctx, responseWAV)
	})
	if err != nil {
		return p.speechFailed(log, err)
	}

	p.setState(Idle)
	p.metrics.TurnFinished(metrics.OutcomeCompleted)
	return Idle, nil
}

func (p *Pipeline) speechFailed(log zerolog.Logger, err error) (State, error) {
	p.setState(Idle)
	p.metrics.TurnFinished(metrics.OutcomeSpeechFailed)

	if p.onSpeech == AbortOnSpeechFailure {
		log.Error().Err(err).Msg("Speech failed")
		return Idle, err
	}

	log.Warn().Err(err).Msg("Speech failed, listening again")
	if p.status != nil {
		p.status.Warn(err)
	}
	return Idle, nil
}

func (p *Pipeline) fail(log zerolog.Logger, err error) (State, error) {
	p.setState(Idle)
	p.metrics.TurnFinished(metrics.OutcomeFailed)
	log.Error().Err(err).Msg("Turn failed")
	return Idle, err
}

// timed runs fn as stage s, tagging its error with s.
func (p *Pipeline) timed(s stage.Stage, fn func() error) error {
	start := time.Now()
	err := stage.Wrap(s, fn())
	p.metrics.ObserveStage(s, time.Since(start), err)
	return err
}

func (p *Pipeline) append(role Role, content string) {
	p.history.Append(role, content)
	p.metrics.SetHistoryLength(p.history.Len())
	if p.status != nil {
		p.status.Said(Message{Role: role, Content: content})
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()

	if p.status != nil {
		p.status.SetState(s)
	}
}

// State is the current position in the turn.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns a copy of the conversation so far.
func (p *Pipeline) History() []Message {
	return p.history.Messages()
}

// Close removes the turn recordings from the work dir.
func (p *Pipeline) Close() error {
	var errs []error
	for _, name := range []string{userInputFile, userInputFile + ".txt", assistantWAVFile} {
		if err := os.Remove(filepath.Join(p.workDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
