package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/petems/voiceloop/internal/conversation"
)

func init() {
	SetColor(false)
}

func TestEmojiForState(t *testing.T) {
	tests := []struct {
		state conversation.State
		want  string
	}{
		{conversation.Listening, "🔴"},
		{conversation.Transcribing, "🟡"},
		{conversation.Inferring, "🟡"},
		{conversation.Synthesizing, "🟡"},
		{conversation.Speaking, "🔊"},
		{conversation.Idle, "🟢"},
		{conversation.Stopped, "🟢"},
		{conversation.State(42), "⚪️"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := emojiForState(tt.state); got != tt.want {
				t.Errorf("emojiForState(%v) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestPrinterTurn(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "press Enter to stop")

	p.SetState(conversation.Listening)
	p.SetState(conversation.Transcribing)
	p.Said(conversation.Message{Role: conversation.User, Content: "what is the capital of france"})
	p.SetState(conversation.Inferring)
	p.Said(conversation.Message{Role: conversation.Assistant, Content: "Paris."})
	p.SetState(conversation.Speaking)
	p.SetState(conversation.Idle)

	want := strings.Join([]string{
		"🎤 🔴 Listening... (press Enter to stop)",
		"🎤 🟡 Transcribing...",
		"You: what is the capital of france",
		"🎤 🟡 Inferring...",
		"Assistant: Paris.",
		"🎤 🔊 Speaking...",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrinterSkipsRepeatedState(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "")

	p.SetState(conversation.Listening)
	p.SetState(conversation.Listening)

	if got := strings.Count(buf.String(), "Listening"); got != 1 {
		t.Errorf("expected one status line, got %d:\n%s", got, buf.String())
	}
	if strings.Contains(buf.String(), "()") {
		t.Errorf("empty hint should not be rendered: %q", buf.String())
	}
}

func TestPrinterWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "")

	p.Warn(errors.New("synthesis: piper failed"))
	p.Error(errors.New("inference: server unreachable"))

	out := buf.String()
	if !strings.Contains(out, "⚠️ synthesis: piper failed\n") {
		t.Errorf("missing warning in %q", out)
	}
	if !strings.Contains(out, "⚪️ inference: server unreachable\n") {
		t.Errorf("missing error in %q", out)
	}
}

func TestWelcome(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, "").Welcome("llama3.2:latest", "exit")

	if !strings.Contains(buf.String(), `Say "exit" to leave`) {
		t.Errorf("welcome does not mention exit keyword: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "llama3.2:latest") {
		t.Errorf("welcome does not mention model: %q", buf.String())
	}
}
