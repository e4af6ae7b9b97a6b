package inference

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/conversation"
	"github.com/petems/voiceloop/internal/stage"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client       openai.Client
	model        string
	systemPrompt string
	log          zerolog.Logger
}

type OpenAIConfig struct {
	// BaseURL defaults to the OpenAI API when empty.
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
	Logger       zerolog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		log:          cfg.Logger,
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, history []conversation.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case conversation.Assistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	c.log.Debug().Str("model", c.model).Int("messages", len(messages)).Msg("Calling chat completions")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		kind := stage.ErrInferenceUnreachable
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			kind = statusKind(apiErr.StatusCode)
		}
		return "", stage.Errorf(stage.Inference, kind, "%w", err)
	}
	if len(resp.Choices) == 0 {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "empty choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", stage.Errorf(stage.Inference, stage.ErrInferenceMalformed, "reply content is empty")
	}
	return answer, nil
}
