package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

const DefaultUpstageBaseURL = "https://api.upstage.ai/v1/solar"

type UpstageConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
}

// UpstageBackend calls Solar through its OpenAI-compatible endpoint. The endpoint
// only understands user and system turns.
type UpstageBackend struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewUpstageBackend(cfg UpstageConfig) (*UpstageBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("upstage: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultUpstageBaseURL
	}

	return &UpstageBackend{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}, nil
}

func (b *UpstageBackend) Name() domain.BackendName {
	return domain.BackendUpstage
}

func (b *UpstageBackend) Complete(ctx context.Context, messages []domain.PromptMessage, opts domain.CallOptions) (string, error) {
	flat := flattenMessages(messages)
	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(flat))
	for _, m := range flat {
		if m.Role == "user" {
			wire = append(wire, openai.UserMessage(m.Content))
		} else {
			wire = append(wire, openai.SystemMessage(m.Content))
		}
	}

	res, err := b.client.Chat.Completions.New(ctx, completionParams(b.model, b.maxTokens, wire, opts))
	if err != nil {
		return "", fmt.Errorf("upstage: chat completion: %w", err)
	}
	text, err := firstChoice(res)
	if err != nil {
		return "", fmt.Errorf("upstage: %w", err)
	}
	return text, nil
}

type roleContent struct {
	Role    string
	Content string
}

// flattenMessages maps human turns to "user" and everything else, ai turns
// included, to "system". Order and content are kept.
func flattenMessages(messages []domain.PromptMessage) []roleContent {
	out := make([]roleContent, 0, len(messages))
	for _, m := range messages {
		role := "system"
		if m.Role == domain.PromptRoleHuman {
			role = "user"
		}
		out = append(out, roleContent{Role: role, Content: m.Text})
	}
	return out
}
