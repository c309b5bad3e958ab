package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/docent-agent/internal/app/tools"
	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

// DefaultMaxIterations bounds the tool-using phase of a run.
const DefaultMaxIterations = 2

// ErrEmptyAnswer is returned when the model finishes without any text.
var ErrEmptyAnswer = errors.New("agent produced an empty answer")

// ToolSpec is what the model is told about an available tool.
type ToolSpec struct {
	Name        string
	Description string
}

// ToolCall is a model request to run a tool with a query.
type ToolCall struct {
	ID    string
	Name  string
	Query string
}

// Observation is the outcome of one tool call, fed back to the model.
type Observation struct {
	Call   ToolCall
	Output string
}

// Step is one model turn. A step without tool calls is a final answer.
type Step struct {
	Text      string
	ToolCalls []ToolCall
}

// StepModel is a chat backend that can take part in a tool-calling loop.
// When specs is empty the model must answer with text.
type StepModel interface {
	Step(ctx context.Context, messages []domain.PromptMessage, specs []ToolSpec, observations []Observation, opts domain.CallOptions) (Step, error)
}

// Agent runs a bounded tool-calling loop over a StepModel.
type Agent struct {
	model         StepModel
	tools         []tools.Tool
	maxIterations int
}

func NewAgent(model StepModel, toolset []tools.Tool) *Agent {
	return &Agent{
		model:         model,
		tools:         toolset,
		maxIterations: DefaultMaxIterations,
	}
}

// WithMaxIterations overrides the iteration cap. Values below 1 are ignored.
func (a *Agent) WithMaxIterations(n int) *Agent {
	if n > 0 {
		a.maxIterations = n
	}
	return a
}

// Run asks the model for steps until it answers or the cap is reached. After the
// cap, one more pass with tools disabled generates the answer from what was
// observed so far.
func (a *Agent) Run(ctx context.Context, messages []domain.PromptMessage, opts domain.CallOptions) (string, error) {
	log := observability.LoggerFromContext(ctx).With("component", "agent")

	specs := make([]ToolSpec, 0, len(a.tools))
	for _, t := range a.tools {
		specs = append(specs, ToolSpec{Name: t.Name(), Description: t.Description()})
	}

	var observations []Observation
	for i := 0; i < a.maxIterations; i++ {
		start := time.Now()
		step, err := a.model.Step(ctx, messages, specs, observations, opts)
		if err != nil {
			return "", fmt.Errorf("agent step %d: %w", i+1, err)
		}
		log.Info("agent step end",
			"iteration", i+1,
			"tool_calls", len(step.ToolCalls),
			"elapsed_ms", time.Since(start).Milliseconds())

		if len(step.ToolCalls) == 0 {
			if step.Text == "" {
				return "", ErrEmptyAnswer
			}
			return step.Text, nil
		}

		for _, call := range step.ToolCalls {
			observations = append(observations, Observation{
				Call:   call,
				Output: a.callTool(ctx, call),
			})
		}
	}

	log.Info("agent iteration cap reached, generating final answer", "observations", len(observations))
	step, err := a.model.Step(ctx, messages, nil, observations, opts)
	if err != nil {
		return "", fmt.Errorf("agent final step: %w", err)
	}
	if step.Text == "" {
		return "", ErrEmptyAnswer
	}
	return step.Text, nil
}

// callTool never fails: errors are reported to the model as the observation.
func (a *Agent) callTool(ctx context.Context, call ToolCall) string {
	log := observability.LoggerFromContext(ctx)

	tool, ok := tools.Find(a.tools, call.Name)
	if !ok {
		log.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("%s is not a valid tool, try one of the available tools.", call.Name)
	}

	out, err := tool.Call(ctx, call.Query)
	if err != nil {
		log.Warn("tool call failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	return out
}
