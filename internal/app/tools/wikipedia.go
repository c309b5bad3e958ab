package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// WikipediaTool looks up encyclopedia intros through the MediaWiki API.
type WikipediaTool struct {
	baseURL string
	client  *http.Client
	results int
}

// NewWikipediaTool creates the tool. baseURL is the api.php endpoint,
// e.g. https://en.wikipedia.org/w/api.php.
func NewWikipediaTool(baseURL string) *WikipediaTool {
	return &WikipediaTool{
		baseURL: baseURL,
		client:  defaultHTTPClient(),
		results: 2,
	}
}

func (t *WikipediaTool) Name() string {
	return "wikipedia"
}

func (t *WikipediaTool) Description() string {
	return "Look up general knowledge about places, people, history and culture in the encyclopedia. Input is a search query."
}

type wikiResponse struct {
	Query struct {
		Pages map[string]struct {
			Index   int    `json:"index"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (t *WikipediaTool) Call(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("wikipedia: empty query")
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", fmt.Sprint(t.results))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("wikipedia: create request: %w", err)
	}
	req.Header.Set("User-Agent", "docent-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia: api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("wikipedia: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia: api error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed wikiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("wikipedia: unmarshal response: %w", err)
	}

	type page struct {
		index          int
		title, extract string
	}
	var pages []page
	for _, p := range parsed.Query.Pages {
		if strings.TrimSpace(p.Extract) == "" {
			continue
		}
		pages = append(pages, page{p.Index, p.Title, strings.TrimSpace(p.Extract)})
	}
	if len(pages) == 0 {
		return "No good Wikipedia search result was found.", nil
	}
	// pages come back as a map; index is the search rank
	sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })

	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Page: %s\nSummary: %s", p.title, p.extract)
	}
	return truncate(b.String(), maxObservationRunes), nil
}
