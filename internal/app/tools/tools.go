package tools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// Tool represents a tool agents can invoke.
// A tool takes a free-text query and answers with text the model can read.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, query string) (string, error)
}

// maxObservationRunes bounds what a single tool call can add to the prompt.
const maxObservationRunes = 2000

// maxResponseBytes bounds how much of an upstream response is read.
const maxResponseBytes = 1 << 20

var errResponseTooLarge = errors.New("response exceeds 1MiB")

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, errResponseTooLarge
	}
	return body, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Find returns the tool with the given name.
func Find(list []Tool, name string) (Tool, bool) {
	for _, t := range list {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
