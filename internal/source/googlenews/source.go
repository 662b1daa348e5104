package googlenews

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"crashfeed/internal/domain"
)

const (
	SourceID   = "google-news"
	SourceName = "Google News Search"
)

// Config holds Google News search feed configuration.
type Config struct {
	BaseURL        string
	Language       string
	Country        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches the Google News RSS search feed for one query at a time.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	language       string
	country        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Google News source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		language:       cfg.Language,
		country:        cfg.Country,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchItems fetches the search feed for one query and returns its raw
// items in feed order.
func (s *Source) FetchItems(ctx context.Context, query string) ([]domain.FeedItem, error) {
	feedURL := fmt.Sprintf("%s?q=%s&hl=%s&gl=%s&ceid=%s:%s",
		s.baseURL,
		url.QueryEscape(query),
		s.language,
		s.country,
		s.country,
		s.language,
	)

	var feed *rssFeed
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		feed, err = s.doRequest(ctx, feedURL)
		if err == nil {
			return s.transform(feed), nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("feed request failed, retrying",
			"query", query,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, feedURL string) (*rssFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/rss+xml, application/xml")
	req.Header.Set("User-Agent", "Crashfeed/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return &feed, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(feed *rssFeed) []domain.FeedItem {
	items := make([]domain.FeedItem, 0, len(feed.Channel.Items))

	for _, it := range feed.Channel.Items {
		publishedAt, err := parsePubDate(it.PubDate)
		if err != nil {
			s.logger.Warn("failed to parse pubDate",
				"link", it.Link,
				"pub_date", it.PubDate,
			)
			continue
		}

		items = append(items, domain.FeedItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			SourceName:  it.Source.Name,
			PublishedAt: publishedAt,
		})
	}

	return items
}

// pubDate layouts seen in the wild, most common first.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func parsePubDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range pubDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
