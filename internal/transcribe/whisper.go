package transcribe

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/audio"
	"github.com/petems/voiceloop/internal/stage"
)

// pathBinary is looked up on PATH after every configured location.
const pathBinary = "whisper-cli"

// Config configures the whisper.cpp command line transcriber.
type Config struct {
	// Dir is a whisper.cpp checkout; its build tree is searched first.
	Dir string
	// Model is the path of a ggml model file.
	Model   string
	Threads int
	// Binaries are extra executables tried after the build tree.
	Binaries []string
	Logger   zerolog.Logger
}

// Whisper transcribes WAV files by running the whisper.cpp CLI.
type Whisper struct {
	dir      string
	model    string
	threads  int
	binaries []string
	log      zerolog.Logger
}

func NewWhisper(cfg Config) *Whisper {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Whisper{
		dir:      cfg.Dir,
		model:    cfg.Model,
		threads:  threads,
		binaries: cfg.Binaries,
		log:      cfg.Logger,
	}
}

// Candidates lists the executables tried, in order.
func (w *Whisper) Candidates() []string {
	var out []string
	if w.dir != "" {
		bin := filepath.Join(w.dir, "build", "bin")
		if runtime.GOOS == "windows" {
			out = append(out,
				filepath.Join(bin, "Release", "whisper-cli.exe"),
				filepath.Join(bin, "Release", "main.exe"))
		} else {
			out = append(out,
				filepath.Join(bin, "whisper-cli"),
				filepath.Join(bin, "main"))
		}
	}
	out = append(out, w.binaries...)
	return append(out, pathBinary)
}

// Binary resolves the first candidate that exists.
func (w *Whisper) Binary() (string, error) {
	candidates := w.Candidates()
	for _, c := range candidates {
		if resolved, ok := resolve(c); ok {
			return resolved, nil
		}
	}
	return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionUnavailable,
		"whisper binary not found, tried %s", strings.Join(candidates, ", "))
}

// resolve treats bare names as PATH lookups and anything else as a file.
func resolve(candidate string) (string, bool) {
	if !strings.ContainsRune(candidate, os.PathSeparator) && !strings.ContainsRune(candidate, '/') {
		p, err := exec.LookPath(candidate)
		return p, err == nil
	}
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}
	return candidate, true
}

// Transcribe runs whisper on wavPath and returns the trimmed text.
func (w *Whisper) Transcribe(ctx context.Context, wavPath string) (string, error) {
	bin, err := w.Binary()
	if err != nil {
		return "", err
	}

	// A failed or interrupted capture shows up here as a short file.
	dur, err := audio.WAVDuration(wavPath)
	if err != nil {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed, "unreadable recording: %w", err)
	}
	if dur == 0 {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed, "recording %s is empty", wavPath)
	}

	txtPath := wavPath + ".txt"
	if err := os.Remove(txtPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed, "removing stale output: %w", err)
	}

	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"-otxt",
		"-t", strconv.Itoa(w.threads),
		"-pp",
	}

	w.log.Debug().
		Str("binary", bin).
		Strs("args", args).
		Dur("audio", dur).
		Msg("Running whisper")

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed,
			"%s: %w: %s", filepath.Base(bin), err, tail(output.String()))
	}
	if output.Len() > 0 {
		w.log.Debug().Str("output", output.String()).Msg("Whisper output")
	}

	data, err := os.ReadFile(txtPath)
	if err != nil {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed,
			"whisper did not create output file at %s: %w", txtPath, err)
	}

	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "", stage.Errorf(stage.Transcription, stage.ErrTranscriptionFailed, "empty transcript")
	}
	return text, nil
}

// tail keeps the end of a process's output, where the error usually is.
func tail(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
