package speech

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/petems/voiceloop/internal/download"
)

const voiceBaseURL = "https://huggingface.co/rhasspy/piper-voices/resolve/main"

// Voice is a piper voice: an ONNX model and its JSON config.
type Voice struct {
	ID        string
	ModelURL  string
	ConfigURL string
}

// LookupVoice resolves a piper voice id of the form
// <lang>_<REGION>-<name>-<quality>, e.g. en_GB-cori-high, to its download
// location in the rhasspy/piper-voices repository.
func LookupVoice(id string) (Voice, error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Voice{}, fmt.Errorf("invalid voice id %q, want <lang>_<REGION>-<name>-<quality>", id)
	}
	locale, name, quality := parts[0], parts[1], parts[2]
	lang, _, ok := strings.Cut(locale, "_")
	if !ok || lang == "" {
		return Voice{}, fmt.Errorf("invalid voice locale %q in %q", locale, id)
	}

	base := strings.Join([]string{voiceBaseURL, lang, locale, name, quality, id}, "/")
	return Voice{
		ID:        id,
		ModelURL:  base + ".onnx",
		ConfigURL: base + ".onnx.json",
	}, nil
}

// VoicePath is where the model for id is stored under dir. Piper expects
// the config next to it with a .json suffix.
func VoicePath(dir, id string) string {
	return filepath.Join(dir, id+".onnx")
}

// EnsureVoice downloads the model and config for id into dir when missing
// and returns the model path.
func EnsureVoice(ctx context.Context, d *download.Downloader, dir, id string) (string, error) {
	v, err := LookupVoice(id)
	if err != nil {
		return "", err
	}

	modelPath := VoicePath(dir, id)
	if _, err := d.Ensure(ctx, v.ModelURL, modelPath); err != nil {
		return "", fmt.Errorf("downloading model for %s: %w", id, err)
	}
	if _, err := d.Ensure(ctx, v.ConfigURL, modelPath+".json"); err != nil {
		return "", fmt.Errorf("downloading config for %s: %w", id, err)
	}
	return modelPath, nil
}
