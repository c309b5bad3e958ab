package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/PabloGalante/docent-agent/internal/app/agentflow"
	"github.com/PabloGalante/docent-agent/internal/app/tools"
	"github.com/PabloGalante/docent-agent/internal/domain"
)

func TestToVertexContents(t *testing.T) {
	system, contents := toVertexContents(wirePrompt)

	if system != "persona\n\nplace" {
		t.Errorf("unexpected system instruction %q", system)
	}
	wantRoles := []string{"user", "model", "user"}
	wantText := []string{"q1", "a1", "q2"}
	if len(contents) != len(wantRoles) {
		t.Fatalf("expected %d contents, got %d", len(wantRoles), len(contents))
	}
	for i, c := range contents {
		if c.Role != wantRoles[i] || c.Parts[0].Text != wantText[i] {
			t.Errorf("content %d: role=%s text=%q", i, c.Role, c.Parts[0].Text)
		}
	}
}

var testObservations = []agentflow.Observation{
	{Call: agentflow.ToolCall{ID: "c1", Name: "wikipedia", Query: "Gyeongbokgung"}, Output: "Built in 1395."},
}

func TestAppendObservations_FunctionParts(t *testing.T) {
	got := appendObservations(nil, testObservations, false)
	if len(got) != 2 {
		t.Fatalf("expected call and response contents, got %d", len(got))
	}

	call := got[0].Parts[0].FunctionCall
	if got[0].Role != "model" || call == nil || call.Name != "wikipedia" || call.Args["query"] != "Gyeongbokgung" {
		t.Errorf("unexpected function call content %+v", got[0])
	}
	resp := got[1].Parts[0].FunctionResponse
	if got[1].Role != "user" || resp == nil || resp.ID != "c1" || resp.Response["output"] != "Built in 1395." {
		t.Errorf("unexpected function response content %+v", got[1])
	}
}

func TestAppendObservations_AsText(t *testing.T) {
	got := appendObservations(nil, testObservations, true)
	if len(got) != 1 {
		t.Fatalf("expected a single text content, got %d", len(got))
	}
	text := got[0].Parts[0].Text
	if !strings.Contains(text, "[wikipedia] Gyeongbokgung") || !strings.Contains(text, "Built in 1395.") {
		t.Errorf("unexpected observation text %q", text)
	}
	if appendObservations(nil, nil, true) != nil {
		t.Errorf("no observations should add nothing")
	}
}

func TestFunctionDeclarations(t *testing.T) {
	decls := functionDeclarations([]agentflow.ToolSpec{{Name: "web_search", Description: "search"}})
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	d := decls[0]
	if d.Name != "web_search" || d.Parameters == nil || d.Parameters.Properties["query"] == nil {
		t.Errorf("unexpected declaration %+v", d)
	}
	if len(d.Parameters.Required) != 1 || d.Parameters.Required[0] != "query" {
		t.Errorf("query must be required")
	}
}

func TestStepFromResponse(t *testing.T) {
	res := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "Let me check. "},
			{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "wikipedia", Args: map[string]any{"query": "Joseon"}}},
		}},
	}}}

	step := stepFromResponse(res)
	if step.Text != "Let me check. " {
		t.Errorf("unexpected text %q", step.Text)
	}
	if len(step.ToolCalls) != 1 || step.ToolCalls[0] != (agentflow.ToolCall{ID: "c1", Name: "wikipedia", Query: "Joseon"}) {
		t.Errorf("unexpected tool calls %+v", step.ToolCalls)
	}

	if got := stepFromResponse(&genai.GenerateContentResponse{}); got.Text != "" || len(got.ToolCalls) != 0 {
		t.Errorf("empty response should give an empty step")
	}
}

func TestVertexBackend_Name(t *testing.T) {
	var b VertexBackend
	if b.Name() != domain.BackendVertexAI {
		t.Errorf("unexpected name %s", b.Name())
	}
	cfg := b.generateConfig("sys", domain.CallOptions{Temperature: 0.3})
	if *cfg.TopK != 30 || *cfg.TopP != float32(0.8) || cfg.SystemInstruction == nil {
		t.Errorf("unexpected config %+v", cfg)
	}
}

type generateRequest struct {
	Contents []struct {
		Role  string           `json:"role"`
		Parts []map[string]any `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	Tools []struct {
		FunctionDeclarations []struct {
			Name string `json:"name"`
		} `json:"functionDeclarations"`
	} `json:"tools"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		TopK            float64 `json:"topK"`
		TopP            float64 `json:"topP"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

// fakeGemini answers generateContent calls with the queued responses in order
// and records each request.
type fakeGemini struct {
	mu        sync.Mutex
	responses []string
	requests  []generateRequest
	paths     []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.requests = append(f.requests, req)
	f.paths = append(f.paths, r.URL.Path)

	if len(f.responses) == 0 {
		http.Error(w, `{"error":{"code":500,"message":"no response queued"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(f.responses[0]))
	f.responses = f.responses[1:]
}

const (
	functionCallResponse = `{"candidates":[{"content":{"role":"model","parts":[
		{"functionCall":{"id":"c1","name":"wikipedia","args":{"query":"Gyeongbokgung"}}}]}}]}`
	finalTextResponse = `{"candidates":[{"content":{"role":"model","parts":[
		{"text":"Gyeongbokgung was built in 1395."}]}}]}`
)

func newTestVertexBackend(t *testing.T, fake *fakeGemini) *VertexBackend {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewVertexBackend(context.Background(), VertexConfig{
		ProjectID:       "docent-test",
		Location:        "us-central1",
		Model:           "gemini-2.5-flash",
		MaxOutputTokens: 256,
		BaseURL:         srv.URL + "/",
		HTTPClient:      srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewVertexBackend: %v", err)
	}
	return b
}

type stubTool struct {
	name    string
	output  string
	queries []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Call(_ context.Context, q string) (string, error) {
	s.queries = append(s.queries, q)
	return s.output, nil
}

func TestVertexBackend_Complete(t *testing.T) {
	fake := &fakeGemini{responses: []string{finalTextResponse}}
	b := newTestVertexBackend(t, fake)

	got, err := b.Complete(context.Background(), wirePrompt, domain.CallOptions{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Gyeongbokgung was built in 1395." {
		t.Errorf("unexpected reply %q", got)
	}

	if len(fake.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(fake.requests))
	}
	if !strings.HasSuffix(fake.paths[0], "/models/gemini-2.5-flash:generateContent") {
		t.Errorf("unexpected path %s", fake.paths[0])
	}

	req := fake.requests[0]
	gc := req.GenerationConfig
	if gc.TopK != 30 || gc.TopP < 0.79 || gc.TopP > 0.81 || gc.MaxOutputTokens != 256 {
		t.Errorf("unexpected generation config %+v", gc)
	}
	if gc.Temperature < 0.29 || gc.Temperature > 0.31 {
		t.Errorf("unexpected temperature %v", gc.Temperature)
	}
	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "persona\n\nplace" {
		t.Errorf("unexpected system instruction %+v", req.SystemInstruction)
	}
	if len(req.Contents) != 3 || req.Contents[1].Role != "model" {
		t.Errorf("unexpected contents %+v", req.Contents)
	}
	if len(req.Tools) != 0 {
		t.Errorf("plain completion must not declare tools")
	}
}

func TestVertexBackend_AgentToolRoundTrip(t *testing.T) {
	fake := &fakeGemini{responses: []string{functionCallResponse, finalTextResponse}}
	b := newTestVertexBackend(t, fake)
	wiki := &stubTool{name: "wikipedia", output: "Page: Gyeongbokgung\nSummary: Built in 1395."}
	r := NewRouter([]tools.Tool{wiki}, b)

	got, err := r.Send(context.Background(), wirePrompt, SendOptions{Backend: domain.BackendVertexAI, AgentMode: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "Gyeongbokgung was built in 1395." {
		t.Errorf("unexpected answer %q", got)
	}
	if len(wiki.queries) != 1 || wiki.queries[0] != "Gyeongbokgung" {
		t.Errorf("unexpected tool queries %v", wiki.queries)
	}

	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 generate calls, got %d", len(fake.requests))
	}
	first := fake.requests[0]
	if len(first.Tools) != 1 || len(first.Tools[0].FunctionDeclarations) != 1 ||
		first.Tools[0].FunctionDeclarations[0].Name != "wikipedia" {
		t.Errorf("first call should declare the wikipedia tool, got %+v", first.Tools)
	}

	// the second call replays the function call and its response
	second := fake.requests[1]
	if len(second.Contents) != 5 {
		t.Fatalf("expected prompt plus call and response, got %d contents", len(second.Contents))
	}
	call := second.Contents[3]
	if call.Role != "model" || call.Parts[0]["functionCall"] == nil {
		t.Errorf("expected function call content, got %+v", call)
	}
	resp := second.Contents[4]
	if resp.Role != "user" || resp.Parts[0]["functionResponse"] == nil {
		t.Errorf("expected function response content, got %+v", resp)
	}
}
