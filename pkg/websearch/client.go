package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ai-tutor-be/pkg/store"
)

// Hit is one provider result. Field names track the provider wire format.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Searcher issues provider queries and returns titled snippets.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Client talks to the HTTP search provider.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

var _ Searcher = &Client{}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type searchResponse struct {
	Results []Hit `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%d", c.BaseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search provider request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed searchResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	if len(parsed.Results) > limit {
		parsed.Results = parsed.Results[:limit]
	}
	return parsed.Results, nil
}

// ToSources converts hits into envelope sources, dropping untitled entries.
func ToSources(hits []Hit) []store.Source {
	sources := make([]store.Source, 0, len(hits))
	for _, h := range hits {
		if h.Title == "" {
			continue
		}
		sources = append(sources, store.Source{
			Title:       h.Title,
			URL:         h.URL,
			Snippet:     h.Snippet,
			Reliability: reliabilityFor(h.Source),
		})
	}
	return sources
}

// reliabilityFor assigns a coarse score per provider source tag.
func reliabilityFor(source string) float64 {
	switch source {
	case "encyclopedia", "academic":
		return 0.9
	case "news":
		return 0.7
	case "":
		return 0.5
	default:
		return 0.6
	}
}
