package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/docent-agent/internal/app/agentflow"
	"github.com/PabloGalante/docent-agent/internal/app/tools"
	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

// SendOptions selects the backend and how it is called.
type SendOptions struct {
	Backend     domain.BackendName
	Temperature float64
	AgentMode   bool
}

// Router dispatches prompts to one of the registered chat backends. The registry
// is fixed at construction.
type Router struct {
	backends map[domain.BackendName]domain.ChatBackend
	tools    []tools.Tool
}

// NewRouter registers backends by their Name. A later backend with the same name
// replaces an earlier one.
func NewRouter(toolset []tools.Tool, backends ...domain.ChatBackend) *Router {
	r := &Router{
		backends: make(map[domain.BackendName]domain.ChatBackend, len(backends)),
		tools:    toolset,
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// Registered lists the backend names that can be served.
func (r *Router) Registered() []domain.BackendName {
	var out []domain.BackendName
	for _, name := range domain.Backends {
		if _, ok := r.backends[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Send returns the reply text of the selected backend. An unknown selector is
// rejected before any backend is contacted.
func (r *Router) Send(ctx context.Context, messages []domain.PromptMessage, opts SendOptions) (string, error) {
	name, err := domain.ParseBackendName(string(opts.Backend))
	if err != nil {
		return "", err
	}

	backend, ok := r.backends[name]
	if !ok {
		return "", fmt.Errorf("llm backend %q is not configured: %w", name, domain.ErrBackendUnavailable)
	}

	log := observability.LoggerFromContext(ctx).With("backend", name)
	callOpts := domain.CallOptions{Temperature: opts.Temperature}
	start := time.Now()

	var reply string
	if model, ok := backend.(agentflow.StepModel); ok && opts.AgentMode {
		log.Info("llm call start", "agent_mode", true, "messages", len(messages))
		reply, err = agentflow.NewAgent(model, r.tools).Run(ctx, messages, callOpts)
	} else {
		log.Info("llm call start", "agent_mode", false, "messages", len(messages))
		reply, err = backend.Complete(ctx, messages, callOpts)
	}
	if err != nil {
		log.Error("llm call failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("llm %s: %w", name, err)
	}

	log.Info("llm call end", "elapsed_ms", time.Since(start).Milliseconds())
	return reply, nil
}
