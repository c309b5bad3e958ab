package domain

import (
	"errors"
	"fmt"
	"time"
)

type UserID string
type MessageID string
type PlaceID string

type Timestamp = time.Time

// BackendName identifies one of the chat-completion providers.
type BackendName string

const (
	BackendOpenAI   BackendName = "openai"
	BackendVertexAI BackendName = "vertexai"
	BackendUpstage  BackendName = "upstage"
)

// Backends lists the closed set of selectable providers.
var Backends = []BackendName{BackendOpenAI, BackendVertexAI, BackendUpstage}

// ParseBackendName returns the selector for s, or ErrInvalidInput when s is not
// one of the known providers. Matching is exact.
func ParseBackendName(s string) (BackendName, error) {
	for _, b := range Backends {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown llm backend %q: %w", s, ErrInvalidInput)
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
)
