package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/petems/voiceloop/internal/download"
)

// Model download URLs (Hugging Face)
var modelURLs = map[string]string{
	"tiny.en":        "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
	"base.en":        "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
	"small.en":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin",
	"medium.en":      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.en.bin",
	"large-v3":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
	"large-v3-turbo": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
}

// Models lists the model names EnsureModel can download.
func Models() []string {
	names := make([]string, 0, len(modelURLs))
	for name := range modelURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelPath is where model is stored under dir.
func ModelPath(dir, model string) string {
	return filepath.Join(dir, "ggml-"+model+".bin")
}

// EnsureModel downloads model into dir if it is not there yet and returns
// its path. Models outside the catalogue must already be present.
func EnsureModel(ctx context.Context, d *download.Downloader, dir, model string) (string, error) {
	path := ModelPath(dir, model)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	url, ok := modelURLs[model]
	if !ok {
		return "", fmt.Errorf("unknown whisper model %s and %s does not exist", model, path)
	}
	if _, err := d.Ensure(ctx, url, path); err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return path, nil
}
