package agentflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PabloGalante/docent-agent/internal/app/tools"
	"github.com/PabloGalante/docent-agent/internal/domain"
)

type stepCall struct {
	specs        []ToolSpec
	observations []Observation
}

// scriptedModel replays steps in order and records what it was given.
type scriptedModel struct {
	steps []Step
	err   error
	calls []stepCall
}

func (m *scriptedModel) Step(_ context.Context, _ []domain.PromptMessage, specs []ToolSpec, obs []Observation, _ domain.CallOptions) (Step, error) {
	m.calls = append(m.calls, stepCall{
		specs:        specs,
		observations: append([]Observation(nil), obs...),
	})
	if m.err != nil {
		return Step{}, m.err
	}
	if len(m.calls) > len(m.steps) {
		return Step{Text: "fallback"}, nil
	}
	return m.steps[len(m.calls)-1], nil
}

type fakeTool struct {
	name    string
	out     string
	err     error
	queries []string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Call(_ context.Context, q string) (string, error) {
	f.queries = append(f.queries, q)
	return f.out, f.err
}

var prompt = []domain.PromptMessage{domain.HumanMessage("What is this palace?")}

func TestAgent_AnswersWithoutTools(t *testing.T) {
	model := &scriptedModel{steps: []Step{{Text: "It is Gyeongbokgung."}}}
	wiki := &fakeTool{name: "wikipedia"}

	got, err := NewAgent(model, []tools.Tool{wiki}).Run(context.Background(), prompt, domain.CallOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "It is Gyeongbokgung." {
		t.Errorf("unexpected answer %q", got)
	}
	if len(model.calls) != 1 {
		t.Errorf("expected a single step, got %d", len(model.calls))
	}
	if len(model.calls[0].specs) != 1 || model.calls[0].specs[0].Name != "wikipedia" {
		t.Errorf("tool specs not offered: %+v", model.calls[0].specs)
	}
	if len(wiki.queries) != 0 {
		t.Errorf("tool should not be called")
	}
}

func TestAgent_UsesToolThenAnswers(t *testing.T) {
	model := &scriptedModel{steps: []Step{
		{ToolCalls: []ToolCall{{ID: "1", Name: "wikipedia", Query: "Gyeongbokgung"}}},
		{Text: "Built in 1395."},
	}}
	wiki := &fakeTool{name: "wikipedia", out: "Gyeongbokgung was built in 1395."}

	got, err := NewAgent(model, []tools.Tool{wiki}).Run(context.Background(), prompt, domain.CallOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "Built in 1395." {
		t.Errorf("unexpected answer %q", got)
	}
	if len(wiki.queries) != 1 || wiki.queries[0] != "Gyeongbokgung" {
		t.Errorf("unexpected tool queries %v", wiki.queries)
	}
	second := model.calls[1]
	if len(second.observations) != 1 || second.observations[0].Output != "Gyeongbokgung was built in 1395." {
		t.Errorf("observation not fed back: %+v", second.observations)
	}
}

func TestAgent_EarlyStopGenerate(t *testing.T) {
	call := Step{ToolCalls: []ToolCall{{Name: "web_search", Query: "hours"}}}
	model := &scriptedModel{steps: []Step{call, call, {Text: "Open 9 to 6."}}}
	search := &fakeTool{name: "web_search", out: "09:00-18:00"}

	got, err := NewAgent(model, []tools.Tool{search}).Run(context.Background(), prompt, domain.CallOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "Open 9 to 6." {
		t.Errorf("unexpected answer %q", got)
	}
	if len(model.calls) != DefaultMaxIterations+1 {
		t.Fatalf("expected %d model calls, got %d", DefaultMaxIterations+1, len(model.calls))
	}
	final := model.calls[len(model.calls)-1]
	if len(final.specs) != 0 {
		t.Errorf("final pass must disable tools")
	}
	if len(final.observations) != 2 {
		t.Errorf("final pass should see all observations, got %d", len(final.observations))
	}
	if len(search.queries) != DefaultMaxIterations {
		t.Errorf("expected %d tool calls, got %d", DefaultMaxIterations, len(search.queries))
	}
}

func TestAgent_ToolFailuresBecomeObservations(t *testing.T) {
	model := &scriptedModel{steps: []Step{
		{ToolCalls: []ToolCall{
			{Name: "wikipedia", Query: "x"},
			{Name: "calculator", Query: "1+1"},
		}},
		{Text: "done"},
	}}
	wiki := &fakeTool{name: "wikipedia", err: errors.New("timeout")}

	got, err := NewAgent(model, []tools.Tool{wiki}).Run(context.Background(), prompt, domain.CallOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "done" {
		t.Errorf("unexpected answer %q", got)
	}
	obs := model.calls[1].observations
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if !strings.Contains(obs[0].Output, "timeout") {
		t.Errorf("tool error not reported: %q", obs[0].Output)
	}
	if !strings.Contains(obs[1].Output, "not a valid tool") {
		t.Errorf("unknown tool not reported: %q", obs[1].Output)
	}
}

func TestAgent_ModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	model := &scriptedModel{err: boom}

	_, err := NewAgent(model, nil).Run(context.Background(), prompt, domain.CallOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestAgent_EmptyAnswer(t *testing.T) {
	model := &scriptedModel{steps: []Step{{Text: ""}}}

	_, err := NewAgent(model, nil).Run(context.Background(), prompt, domain.CallOptions{})
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestAgent_WithMaxIterations(t *testing.T) {
	call := Step{ToolCalls: []ToolCall{{Name: "wikipedia", Query: "q"}}}
	model := &scriptedModel{steps: []Step{call, {Text: "final"}}}
	wiki := &fakeTool{name: "wikipedia", out: "ok"}

	got, err := NewAgent(model, []tools.Tool{wiki}).WithMaxIterations(1).Run(context.Background(), prompt, domain.CallOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "final" || len(model.calls) != 2 {
		t.Errorf("got %q after %d calls", got, len(model.calls))
	}
}
