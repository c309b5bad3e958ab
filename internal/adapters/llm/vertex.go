package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/docent-agent/internal/app/agentflow"
	"github.com/PabloGalante/docent-agent/internal/domain"
)

const (
	vertexTopK = 30
	vertexTopP = 0.8
)

type VertexConfig struct {
	ProjectID       string
	Location        string
	Model           string
	MaxOutputTokens int

	// BaseURL and HTTPClient override the endpoint and transport. A custom
	// client replaces default credential discovery.
	BaseURL    string
	HTTPClient *http.Client
}

// VertexBackend is a chat backend based on Vertex AI (Gemini). It also acts as
// the step model of the agent loop through function calling.
type VertexBackend struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

func NewVertexBackend(ctx context.Context, cfg VertexConfig) (*VertexBackend, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex: project and location must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     cfg.ProjectID,
		Location:    cfg.Location,
		Backend:     genai.BackendVertexAI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexBackend{
		client:    client,
		modelName: cfg.Model,
		maxTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

func (v *VertexBackend) Name() domain.BackendName {
	return domain.BackendVertexAI
}

// Complete implements domain.ChatBackend.
func (v *VertexBackend) Complete(ctx context.Context, messages []domain.PromptMessage, opts domain.CallOptions) (string, error) {
	step, err := v.Step(ctx, messages, nil, nil, opts)
	if err != nil {
		return "", err
	}
	if step.Text == "" {
		return "", fmt.Errorf("vertex returned empty text")
	}
	return step.Text, nil
}

// Step implements agentflow.StepModel.
func (v *VertexBackend) Step(
	ctx context.Context,
	messages []domain.PromptMessage,
	specs []agentflow.ToolSpec,
	observations []agentflow.Observation,
	opts domain.CallOptions,
) (agentflow.Step, error) {
	system, contents := toVertexContents(messages)
	contents = appendObservations(contents, observations, len(specs) == 0)

	cfg := v.generateConfig(system, opts)
	if len(specs) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(specs)}}
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return agentflow.Step{}, fmt.Errorf("vertex generate content: %w", err)
	}
	return stepFromResponse(res), nil
}

func (v *VertexBackend) generateConfig(system string, opts domain.CallOptions) *genai.GenerateContentConfig {
	temp := float32(opts.Temperature)
	topK := float32(vertexTopK)
	topP := float32(vertexTopP)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopK:            &topK,
		TopP:            &topP,
		MaxOutputTokens: v.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// toVertexContents joins system messages into one instruction and maps human to
// user and ai to model.
func toVertexContents(messages []domain.PromptMessage) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case domain.PromptRoleSystem:
			system = append(system, m.Text)
		case domain.PromptRoleAI:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

// appendObservations replays tool calls and their results. When tools are
// disabled for the call, observations are rendered as plain text instead, since
// function parts require declared tools.
func appendObservations(contents []*genai.Content, observations []agentflow.Observation, asText bool) []*genai.Content {
	if len(observations) == 0 {
		return contents
	}

	if asText {
		var b strings.Builder
		b.WriteString("Results of the tools you used:\n")
		for _, o := range observations {
			fmt.Fprintf(&b, "\n[%s] %s\n%s\n", o.Call.Name, o.Call.Query, o.Output)
		}
		b.WriteString("\nUsing these results, give your final answer to the tourist.")
		return append(contents, genai.NewContentFromText(b.String(), genai.RoleUser))
	}

	for _, o := range observations {
		contents = append(contents,
			&genai.Content{
				Role: string(genai.RoleModel),
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					ID:   o.Call.ID,
					Name: o.Call.Name,
					Args: map[string]any{"query": o.Call.Query},
				}}},
			},
			&genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       o.Call.ID,
					Name:     o.Call.Name,
					Response: map[string]any{"output": o.Output},
				}}},
			},
		)
	}
	return contents
}

func functionDeclarations(specs []agentflow.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Search query."},
				},
				Required: []string{"query"},
			},
		})
	}
	return decls
}

// stepFromResponse reads the first candidate. Thought parts are skipped.
func stepFromResponse(res *genai.GenerateContentResponse) agentflow.Step {
	var step agentflow.Step
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return step
	}

	var text strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		if p.FunctionCall != nil {
			query, _ := p.FunctionCall.Args["query"].(string)
			step.ToolCalls = append(step.ToolCalls, agentflow.ToolCall{
				ID:    p.FunctionCall.ID,
				Name:  p.FunctionCall.Name,
				Query: query,
			})
			continue
		}
		text.WriteString(p.Text)
	}
	step.Text = text.String()
	return step
}
