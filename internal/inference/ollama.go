package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/conversation"
	"github.com/petems/voiceloop/internal/stage"
)

// OllamaClient talks to an Ollama server's /api/chat endpoint.
type OllamaClient struct {
	HTTPClient   *http.Client
	Endpoint     string
	Model        string
	SystemPrompt string

	log zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string       `json:"model"`
	Message *chatMessage `json:"message"`
	Done    bool         `json:"done"`
	Error   string       `json:"error"`
}

// NewOllamaClient builds a client for server, given as host:port or a URL.
func NewOllamaClient(server, model string, timeout time.Duration, log zerolog.Logger) *OllamaClient {
	base := strings.TrimRight(server, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &OllamaClient{
		HTTPClient: &http.Client{Timeout: timeout},
		Endpoint:   base + "/api/chat",
		Model:      model,
		log:        log,
	}
}

// Chat sends the whole history, preceded by the system prompt if one is
// set, and returns the reply. There is no retry.
func (c *OllamaClient) Chat(ctx context.Context, history []conversation.Message) (string, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	if c.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody, err := json.Marshal(ollamaChatRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceUnreachable, "%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().
		Str("endpoint", c.Endpoint).
		Str("model", c.Model).
		Int("messages", len(messages)).
		Msg("Calling Ollama")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceUnreachable,
			"calling %s (is `ollama serve` running?): %w", c.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", stage.Errorf(stage.Inference, statusKind(resp.StatusCode),
			"ollama error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "decoding response: %w", err)
	}
	if cr.Error != "" {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "ollama: %s", cr.Error)
	}
	if cr.Message == nil {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "response has no message (check the model name)")
	}

	answer := strings.TrimSpace(cr.Message.Content)
	if answer == "" {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "response message is empty")
	}
	return answer, nil
}
