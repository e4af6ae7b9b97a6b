package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/petems/voiceloop/internal/conversation"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	amber = color.New(color.FgYellow).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

// Printer renders the conversation on a terminal.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	stopHint string
	last     conversation.State
}

// NewPrinter writes to out. stopHint is shown while listening, e.g. how to
// end the recording.
func NewPrinter(out io.Writer, stopHint string) *Printer {
	return &Printer{out: out, stopHint: stopHint, last: -1}
}

// SetColor forces colour on or off. By default fatih/color decides from
// the terminal and NO_COLOR.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// Welcome prints the banner.
func (p *Printer) Welcome(model, exitKeyword string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\n------- %s -------\n", bold("voiceloop"))
	fmt.Fprintf(p.out, "Talking to %s. Say %q to leave, Ctrl+C to abort.\n\n", bold(model), exitKeyword)
}

// SetState prints a status line when the state changes.
func (p *Printer) SetState(s conversation.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == p.last {
		return
	}
	p.last = s

	switch s {
	case conversation.Listening:
		line := "Listening..."
		if p.stopHint != "" {
			line += " (" + p.stopHint + ")"
		}
		fmt.Fprintf(p.out, "🎤 %s %s\n", emojiForState(s), line)
	case conversation.Transcribing, conversation.Inferring, conversation.Synthesizing, conversation.Speaking:
		fmt.Fprintf(p.out, "🎤 %s %s...\n", emojiForState(s), capitalize(s.String()))
	case conversation.Stopped:
		fmt.Fprintf(p.out, "🎤 %s Goodbye.\n", emojiForState(s))
	}
}

// Said prints a transcript or reply.
func (p *Printer) Said(m conversation.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch m.Role {
	case conversation.User:
		fmt.Fprintf(p.out, "%s %s\n", bold(cyan("You:")), cyan(m.Content))
	case conversation.Assistant:
		fmt.Fprintf(p.out, "%s %s\n", bold(green("Assistant:")), green(m.Content))
	}
}

func (p *Printer) Warn(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", amber("⚠️"), amber(err.Error()))
}

// Error prints an error that ended the run.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", emojiForState(-1), red(err.Error()))
}

// emojiForState returns the status indicator shown next to the microphone.
func emojiForState(s conversation.State) string {
	switch s {
	case conversation.Listening:
		return "🔴"
	case conversation.Transcribing, conversation.Inferring, conversation.Synthesizing:
		return "🟡"
	case conversation.Speaking:
		return "🔊"
	case conversation.Idle, conversation.Stopped:
		return "🟢"
	default:
		return "⚪️"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
