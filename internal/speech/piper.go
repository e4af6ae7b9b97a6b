package speech

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/stage"
)

// Config configures the piper synthesizer.
type Config struct {
	// Binaries are tried in order; bare names are looked up on PATH.
	Binaries []string
	// Model is the voice's .onnx file.
	Model string

	LengthScale     float64
	NoiseScale      float64
	NoiseW          float64
	SentenceSilence float64

	Logger zerolog.Logger
}

// Piper synthesizes speech by piping text into the piper CLI.
type Piper struct {
	cfg Config
	log zerolog.Logger
}

func NewPiper(cfg Config) *Piper {
	if len(cfg.Binaries) == 0 {
		cfg.Binaries = []string{"piper-tts", "piper"}
	}
	return &Piper{cfg: cfg, log: cfg.Logger}
}

// Binary resolves the first configured executable that exists.
func (p *Piper) Binary() (string, error) {
	for _, c := range p.cfg.Binaries {
		if strings.ContainsRune(c, os.PathSeparator) || strings.ContainsRune(c, '/') {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c, nil
			}
			continue
		}
		if resolved, err := exec.LookPath(c); err == nil {
			return resolved, nil
		}
	}
	return "", stage.Errorf(stage.Synthesis, stage.ErrSynthesisFailed,
		"piper binary not found, tried %s", strings.Join(p.cfg.Binaries, ", "))
}

func (p *Piper) args(wavPath string) []string {
	return []string{
		"-m", p.cfg.Model,
		"--length-scale", formatFloat(p.cfg.LengthScale),
		"--noise-scale", formatFloat(p.cfg.NoiseScale),
		"--noise-w", formatFloat(p.cfg.NoiseW),
		"--sentence-silence", formatFloat(p.cfg.SentenceSilence),
		"--output_file", wavPath,
	}
}

// Synthesize writes text as speech to wavPath.
func (p *Piper) Synthesize(ctx context.Context, text, wavPath string) error {
	bin, err := p.Binary()
	if err != nil {
		return err
	}

	// A leftover file from the previous turn must not pass for fresh output.
	if err := os.Remove(wavPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stage.Errorf(stage.Synthesis, stage.ErrSynthesisFailed, "removing stale output: %w", err)
	}

	args := p.args(wavPath)
	p.log.Debug().
		Str("binary", bin).
		Str("voice", filepath.Base(p.cfg.Model)).
		Int("chars", len(text)).
		Msg("Synthesizing")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stage.Errorf(stage.Synthesis, stage.ErrSynthesisFailed,
			"piper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(wavPath)
	if err != nil {
		return stage.Errorf(stage.Synthesis, stage.ErrSynthesisFailed, "piper produced no output: %w", err)
	}
	if info.Size() == 0 {
		return stage.Errorf(stage.Synthesis, stage.ErrSynthesisFailed, "piper produced an empty file")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
