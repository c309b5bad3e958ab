package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

// OpenAIConfig configures the OpenAI chat backend.
type OpenAIConfig struct {
	APIKey          string
	Organization    string
	Model           string
	MaxOutputTokens int
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// OpenAIBackend talks to the OpenAI chat completions API.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBackend{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}, nil
}

func (b *OpenAIBackend) Name() domain.BackendName {
	return domain.BackendOpenAI
}

// Complete implements domain.ChatBackend.
func (b *OpenAIBackend) Complete(ctx context.Context, messages []domain.PromptMessage, opts domain.CallOptions) (string, error) {
	res, err := b.client.Chat.Completions.New(ctx, completionParams(b.model, b.maxTokens, toOpenAIMessages(messages), opts))
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}

	observability.LoggerFromContext(ctx).Info("openai usage",
		"model", b.model,
		"prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens,
		"total_tokens", res.Usage.TotalTokens,
	)

	text, err := firstChoice(res)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return text, nil
}

// toOpenAIMessages keeps all three roles.
func toOpenAIMessages(messages []domain.PromptMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.PromptRoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case domain.PromptRoleAI:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}

func completionParams(model string, maxTokens int, messages []openai.ChatCompletionMessageParamUnion, opts domain.CallOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	return params
}

func firstChoice(res *openai.ChatCompletion) (string, error) {
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	text := res.Choices[0].Message.Content
	if text == "" {
		return "", fmt.Errorf("completion returned empty text")
	}
	return text, nil
}
