package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// WebSearchTool queries the DuckDuckGo instant answer API.
type WebSearchTool struct {
	baseURL   string
	client    *http.Client
	maxTopics int
}

func NewWebSearchTool(baseURL string) *WebSearchTool {
	return &WebSearchTool{
		baseURL:   baseURL,
		client:    defaultHTTPClient(),
		maxTopics: 5,
	}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for current information such as opening hours, events or recent news. Input is a search query."
}

type ddgTopic struct {
	Text   string     `json:"Text"`
	Topics []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (t *WebSearchTool) Call(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("web_search: empty query")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("web_search: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_search: api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("web_search: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web_search: api error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed ddgResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("web_search: unmarshal response: %w", err)
	}

	var lines []string
	if parsed.Answer != "" {
		lines = append(lines, parsed.Answer)
	}
	if parsed.AbstractText != "" {
		line := parsed.AbstractText
		if parsed.AbstractURL != "" {
			line += " (" + parsed.AbstractURL + ")"
		}
		lines = append(lines, line)
	}
	for _, text := range flattenTopics(parsed.RelatedTopics) {
		if len(lines) >= t.maxTopics {
			break
		}
		lines = append(lines, "- "+text)
	}

	if len(lines) == 0 {
		return "No good search result was found.", nil
	}
	return truncate(strings.Join(lines, "\n"), maxObservationRunes), nil
}

// flattenTopics walks grouped topics depth first.
func flattenTopics(topics []ddgTopic) []string {
	var out []string
	for _, tp := range topics {
		if tp.Text != "" {
			out = append(out, tp.Text)
		}
		out = append(out, flattenTopics(tp.Topics)...)
	}
	return out
}
