package inference

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/config"
	"github.com/petems/voiceloop/internal/conversation"
	"github.com/petems/voiceloop/internal/stage"
)

// New builds the client for the configured backend.
func New(cfg config.InferenceConfig, log zerolog.Logger) (conversation.Responder, error) {
	switch cfg.Backend {
	case config.BackendOllama:
		c := NewOllamaClient(cfg.Server, cfg.Model, cfg.Timeout, log)
		c.SystemPrompt = cfg.SystemPrompt
		return c, nil
	case config.BackendOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:      cfg.Server,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
			Logger:       log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Backend)
	}
}

// statusKind classifies an HTTP error status. A server that answered but
// rejected the request itself (unknown model, bad body) is a protocol
// failure; anything else means the service is not usable right now.
func statusKind(code int) error {
	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return stage.ErrInferenceMalformed
	default:
		return stage.ErrInferenceUnreachable
	}
}
