// Package tavily is a thin client for the Tavily web search API. It returns
// structured results; the formatted context string is a derived presentation.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
)

const (
	defaultBaseURL = "https://api.tavily.com"
	maxResults     = 5

	// NoResults is the sentinel context string for an empty result set.
	NoResults = "No results found."
)

// Client calls the Tavily search API.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

// Config holds the web search client settings.
type Config struct {
	APIKey  string
	BaseURL string // defaults to the public API
	Logger  *zap.Logger
}

// NewClient creates a web search client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search requests up to five results for the query. API and transport
// failures are wrapped in ErrExternalService.
func (c *Client) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	body, err := json.Marshal(searchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: web search: %v", domain.ErrExternalService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: web search returned %d: %s",
			domain.ErrExternalService, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode web search response: %v", domain.ErrExternalService, err)
	}

	results := make([]domain.WebResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, domain.WebResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	c.logger.Debug("web search completed",
		zap.Int("results", len(results)),
		zap.Duration("latency", time.Since(start)),
	)
	return results, nil
}

// FormatResults renders results as title/URL/content blocks joined with a
// separator, or the NoResults sentinel for an empty set.
func FormatResults(results []domain.WebResult) string {
	if len(results) == 0 {
		return NoResults
	}
	var buf bytes.Buffer
	for i, r := range results {
		if i > 0 {
			buf.WriteString("\n---\n")
		}
		title := r.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&buf, "Title: %s\nURL: %s\nContent: %s\n", title, r.URL, r.Content)
	}
	return buf.String()
}

// Sources lists the result URLs, preserving order and dropping empties.
func Sources(results []domain.WebResult) []string {
	var urls []string
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
