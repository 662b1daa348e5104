package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"crashfeed/internal/domain"
)

type IncidentStore interface {
	// GetByDedupeKey returns the incident with its sources, or nil when no
	// incident matches the key.
	GetByDedupeKey(ctx context.Context, key string) (*domain.Incident, error)
	Create(ctx context.Context, incident *domain.Incident, sources []domain.IncidentSource) (int64, error)
	// AppendSources inserts source rows whose url is not yet recorded for
	// the incident and returns how many were added.
	AppendSources(ctx context.Context, incidentID int64, sources []domain.IncidentSource) (int, error)
	UpdateFields(ctx context.Context, incidentID int64, update domain.IncidentUpdate) error
	SetEnrichment(ctx context.Context, incidentID int64, facts *domain.ExtractedFacts) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type Source interface {
	ID() string
	Name() string
	FetchItems(ctx context.Context, query string) ([]domain.FeedItem, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, incident *domain.Incident, isNew bool) error
	Close() error
}

// FactExtractor is the external text-generation collaborator. Extraction is
// best-effort enrichment: a nil result or an error never fails ingestion.
type FactExtractor interface {
	Extract(ctx context.Context, headline string, snippets []string) (*domain.ExtractedFacts, error)
}
