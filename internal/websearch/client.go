// Package websearch queries a SearxNG-compatible metasearch instance. The
// instance is self-hosted alongside the service; no API key is involved.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	defaultLimit   = 5
	maxSnippetLen  = 500
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Response struct {
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searxResponse struct {
	Results []searxResult `json:"results"`
	Answers []string      `json:"answers"`
}

// Search runs one query, optionally scoped to a site. Results are truncated
// to limit entries with snippets capped so one noisy page cannot flood the
// prompt.
func (c *Client) Search(ctx context.Context, query, site string, limit int) (*Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("web search not configured")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if site != "" {
		query = "site:" + site + " " + query
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var raw searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}
	out := &Response{}
	if len(raw.Answers) > 0 {
		out.Answer = raw.Answers[0]
	}
	for _, r := range raw.Results {
		if r.Title == "" && r.Content == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Content, maxSnippetLen),
		})
		if len(out.Results) >= limit {
			break
		}
	}
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
