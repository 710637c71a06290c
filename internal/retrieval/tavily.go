package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/advisor/internal/advisor"
)

// DefaultTavilyEndpoint is the Tavily search API.
const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// WebSearch queries the Tavily search API.
type WebSearch struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// WebSearchOption configures WebSearch.
type WebSearchOption func(*WebSearch)

// WithEndpoint overrides the search endpoint.
func WithEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) { w.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) WebSearchOption {
	return func(w *WebSearch) { w.client = c }
}

// NewWebSearch builds a Tavily backend.
func NewWebSearch(apiKey string, opts ...WebSearchOption) (*WebSearch, error) {
	if apiKey == "" {
		return nil, errors.New("tavily api key is required")
	}
	w := &WebSearch{
		endpoint: DefaultTavilyEndpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements Backend.
func (w *WebSearch) Search(ctx context.Context, query string, limit int) ([]advisor.Snippet, error) {
	body, err := json.Marshal(tavilyRequest{APIKey: w.apiKey, Query: query, MaxResults: max(limit, 1)})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	out := make([]advisor.Snippet, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Content == "" {
			continue
		}
		out = append(out, advisor.Snippet{
			Title:   r.Title,
			Content: r.Content,
			Source:  r.URL,
			Score:   float32(r.Score),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
