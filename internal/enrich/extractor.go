// Package enrich talks to the external text-generation service that turns
// an incident's headline and snippets into structured facts and SEO copy.
// Enrichment is best effort; an incident is fully ingested without it.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crashfeed/internal/domain"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With("component", "enrich"),
	}
}

type extractRequest struct {
	Headline string   `json:"headline"`
	Snippets []string `json:"snippets"`
}

// Extract asks the service for structured facts. A response the service
// could not produce comes back as (nil, nil) rather than an error.
func (c *Client) Extract(ctx context.Context, headline string, snippets []string) (*domain.ExtractedFacts, error) {
	body, err := json.Marshal(extractRequest{Headline: headline, Snippets: snippets})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var facts domain.ExtractedFacts
	if err := json.NewDecoder(resp.Body).Decode(&facts); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(facts.Facts) == 0 && facts.SEOTitle == "" {
		return nil, nil
	}

	return &facts, nil
}
