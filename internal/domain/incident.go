package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Store errors surfaced by the persistence layer so the upsert engine can
// distinguish which uniqueness constraint fired.
var (
	ErrDuplicateKey = errors.New("incident with dedupe key already exists")
	ErrSlugTaken    = errors.New("incident slug already taken")
)

// FeedItem is one raw entry from a news search feed, before normalization.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	SourceName  string
	PublishedAt time.Time
}

// Candidate is an ephemeral, normalized representation of one raw feed item.
// Same logical event must always yield the same DedupeKey, regardless of
// which query or outlet produced the item.
type Candidate struct {
	Headline    string
	Summary     *string
	SourceURL   string
	SourceTitle string
	SourceName  string
	PublishedAt time.Time
	OccurredAt  time.Time
	City        *string
	State       *string
	Country     *string
	DedupeKey   string
}

// SourceRef is the provenance of one feed item, carried through dedup so it
// can be attached to the merged incident as an IncidentSource row.
type SourceRef struct {
	Title       string
	Snippet     *string
	URL         string
	PublishedAt time.Time
}

// Incident is a persisted record of one real-world accident event,
// aggregating one or more news mentions.
type Incident struct {
	ID             int64           `db:"id"`
	Slug           string          `db:"slug"`
	DedupeKey      string          `db:"dedupe_key"`
	Headline       string          `db:"headline"`
	Summary        *string         `db:"summary"`
	City           *string         `db:"city"`
	State          *string         `db:"state"`
	Country        *string         `db:"country"`
	OccurredAt     time.Time       `db:"occurred_at"`
	ExtractedFacts json.RawMessage `db:"extracted_facts"`
	SEOTitle       *string         `db:"seo_title"`
	SEODescription *string         `db:"seo_description"`
	ArticleBody    *string         `db:"article_body"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Sources []IncidentSource `db:"-"`
}

// IncidentSource is one originating news item attributed to an Incident.
type IncidentSource struct {
	ID          int64     `db:"id"`
	IncidentID  int64     `db:"incident_id"`
	Title       string    `db:"title"`
	Snippet     *string   `db:"snippet"`
	URL         string    `db:"url"`
	PublishedAt time.Time `db:"published_at"`
}

// HasSourceURL reports whether the incident already records a source with
// the given url.
func (i *Incident) HasSourceURL(url string) bool {
	for _, s := range i.Sources {
		if s.URL == url {
			return true
		}
	}
	return false
}

// IncidentUpdate carries the denormalized fields to refresh on an existing
// incident. Nil fields are left untouched.
type IncidentUpdate struct {
	OccurredAt *time.Time
	City       *string
	State      *string
	Country    *string
}

// IsEmpty reports whether the update would change nothing.
func (u IncidentUpdate) IsEmpty() bool {
	return u.OccurredAt == nil && u.City == nil && u.State == nil && u.Country == nil
}

// ExtractedFacts is the best-effort enrichment produced by the external
// text-generation collaborator.
type ExtractedFacts struct {
	Facts          json.RawMessage `json:"facts"`
	SEOTitle       string          `json:"seo_title"`
	SEODescription string          `json:"seo_description"`
}

// CandidateGroup pairs the representative candidate for one dedupe key with
// every source attribution that collapsed into it.
type CandidateGroup struct {
	Candidate Candidate
	Sources   []SourceRef
}
