package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

// MockBackend answers locally without a provider. It registers under any backend
// name so local mode can exercise the whole flow.
type MockBackend struct {
	name domain.BackendName
}

func NewMockBackend(name domain.BackendName) *MockBackend {
	return &MockBackend{name: name}
}

func (m *MockBackend) Name() domain.BackendName {
	return m.name
}

func (m *MockBackend) Complete(_ context.Context, messages []domain.PromptMessage, _ domain.CallOptions) (string, error) {
	var question string
	placeKnown := false
	for _, msg := range messages {
		switch {
		case msg.Role == domain.PromptRoleHuman:
			question = msg.Text
		case msg.Role == domain.PromptRoleSystem && strings.Contains(msg.Text, "closest tourist attraction"):
			placeKnown = true
		}
	}

	if placeKnown {
		return fmt.Sprintf("Great question! You asked %q. Look around: the place right next to you has quite a story.", question), nil
	}
	return fmt.Sprintf("You asked %q. Tell me a bit more about where you are.", question), nil
}
