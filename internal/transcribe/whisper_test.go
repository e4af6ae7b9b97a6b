package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/voiceloop/internal/audio"
	"github.com/petems/voiceloop/internal/download"
	"github.com/petems/voiceloop/internal/stage"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are shell scripts")
	}
}

// writeScript installs an executable shell script at path.
func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
}

// writeRecording creates a WAV file holding frames of silence.
func writeRecording(t *testing.T, dir string, frames int) string {
	t.Helper()
	path := filepath.Join(dir, "user_input.wav")
	sink, err := audio.NewSink(path, audio.StreamConfig{SampleRate: 16000, Channels: 1, Format: audio.FormatInt16}, zerolog.Nop())
	require.NoError(t, err)
	if frames > 0 {
		sink.WriteInt16(make([]int16, frames))
	}
	require.NoError(t, sink.Finalize())
	return path
}

func newTestWhisper(t *testing.T, dir string) *Whisper {
	t.Helper()
	// Keep the real PATH out of binary resolution. The scripts only use
	// shell builtins.
	t.Setenv("PATH", t.TempDir())
	return NewWhisper(Config{
		Dir:     dir,
		Model:   filepath.Join(dir, "ggml-base.en.bin"),
		Threads: 2,
		Logger:  zerolog.Nop(),
	})
}

func TestTranscribeReadsOutputFile(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "build", "bin", "whisper-cli"), `
echo "$@" > "${4%/*}/args"
printf '  what is the capital\nof france \n' > "$4.txt"`)

	w := newTestWhisper(t, dir)
	wav := writeRecording(t, t.TempDir(), 16000)

	text, err := w.Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "what is the capital of france", text)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(wav), "args"))
	require.NoError(t, err)
	assert.Equal(t, "-m "+filepath.Join(dir, "ggml-base.en.bin")+" -f "+wav+" -otxt -t 2 -pp", strings.TrimSpace(string(args)))
}

func TestTranscribeBinaryMissing(t *testing.T) {
	dir := t.TempDir()
	w := newTestWhisper(t, dir)

	_, err := w.Transcribe(context.Background(), writeRecording(t, t.TempDir(), 100))
	require.ErrorIs(t, err, stage.ErrTranscriptionUnavailable)

	s, ok := stage.Of(err)
	require.True(t, ok)
	assert.Equal(t, stage.Transcription, s)
	assert.Contains(t, err.Error(), filepath.Join(dir, "build", "bin", "whisper-cli"))
	assert.Contains(t, err.Error(), "whisper-cli")
}

func TestCandidateOrder(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	mainBin := filepath.Join(dir, "build", "bin", "main")
	writeScript(t, mainBin, "exit 0")

	w := newTestWhisper(t, dir)
	bin, err := w.Binary()
	require.NoError(t, err)
	assert.Equal(t, mainBin, bin, "fallback used when whisper-cli is absent")

	cli := filepath.Join(dir, "build", "bin", "whisper-cli")
	writeScript(t, cli, "exit 0")
	bin, err = w.Binary()
	require.NoError(t, err)
	assert.Equal(t, cli, bin, "whisper-cli wins when both exist")
}

func TestCandidatesFallBackToPath(t *testing.T) {
	skipOnWindows(t)
	pathDir := t.TempDir()
	writeScript(t, filepath.Join(pathDir, "whisper-cli"), "exit 0")
	t.Setenv("PATH", pathDir)

	w := NewWhisper(Config{Logger: zerolog.Nop()})
	bin, err := w.Binary()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pathDir, "whisper-cli"), bin)
}

func TestTranscribeFailures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		script   string
		frames   int
		errorMsg string
	}{
		{"non-zero exit", `echo "failed to load model" >&2; exit 3`, 1600, "failed to load model"},
		{"no output file", "exit 0", 1600, "did not create output file"},
		{"blank transcript", `printf '  \n' > "$4.txt"`, 1600, "empty transcript"},
		{"empty recording", `printf 'hi' > "$4.txt"`, 0, "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeScript(t, filepath.Join(dir, "build", "bin", "whisper-cli"), tt.script)
			w := newTestWhisper(t, dir)
			wav := writeRecording(t, t.TempDir(), tt.frames)

			_, err := w.Transcribe(context.Background(), wav)
			require.ErrorIs(t, err, stage.ErrTranscriptionFailed)
			assert.Contains(t, err.Error(), tt.errorMsg)
			assert.False(t, stage.IsRecoverable(err))
		})
	}
}

func TestTranscribeIgnoresStaleOutput(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "build", "bin", "whisper-cli"), "exit 0")
	w := newTestWhisper(t, dir)

	wav := writeRecording(t, t.TempDir(), 1600)
	require.NoError(t, os.WriteFile(wav+".txt", []byte("last turn's words"), 0644))

	_, err := w.Transcribe(context.Background(), wav)
	require.ErrorIs(t, err, stage.ErrTranscriptionFailed)
}

func TestTranscribeMissingRecording(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "build", "bin", "whisper-cli"), "exit 0")
	w := newTestWhisper(t, dir)

	_, err := w.Transcribe(context.Background(), filepath.Join(dir, "nope.wav"))
	require.ErrorIs(t, err, stage.ErrTranscriptionFailed)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEnsureModel(t *testing.T) {
	dir := t.TempDir()
	d := download.New(nil, zerolog.Nop())

	// Present files are used without a catalogue entry.
	local := ModelPath(dir, "my-finetune")
	require.NoError(t, os.WriteFile(local, []byte("ggml"), 0644))
	path, err := EnsureModel(context.Background(), d, dir, "my-finetune")
	require.NoError(t, err)
	assert.Equal(t, local, path)

	_, err = EnsureModel(context.Background(), d, dir, "does-not-exist")
	assert.ErrorContains(t, err, "unknown whisper model")
}

func TestEnsureModelDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/ggml-tiny.en.bin"))
		w.Write([]byte("ggml"))
	}))
	defer srv.Close()

	orig := modelURLs["tiny.en"]
	modelURLs["tiny.en"] = srv.URL + "/ggml-tiny.en.bin"
	defer func() { modelURLs["tiny.en"] = orig }()

	dir := t.TempDir()
	path, err := EnsureModel(context.Background(), download.New(srv.Client(), zerolog.Nop()), dir, "tiny.en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-tiny.en.bin"), path)
	assert.FileExists(t, path)
	assert.Contains(t, Models(), "tiny.en")
}
