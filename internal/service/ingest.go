package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crashfeed/internal/config"
	"crashfeed/internal/dedup"
	"crashfeed/internal/domain"
	"crashfeed/internal/normalize"
)

// IngestService drives one complete ingestion run: batched feed fetches,
// normalization, global dedup, then reconciliation against storage.
type IngestService struct {
	source     Source
	incidents  IncidentStore
	txManager  TransactionManager
	publisher  Publisher
	extractor  FactExtractor
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	config     config.IngestConfig
}

func NewIngestService(
	source Source,
	incidents IncidentStore,
	txManager TransactionManager,
	publisher Publisher,
	extractor FactExtractor,
	normalizer *normalize.Normalizer,
	logger *slog.Logger,
	cfg config.IngestConfig,
) *IngestService {
	return &IngestService{
		source:     source,
		incidents:  incidents,
		txManager:  txManager,
		publisher:  publisher,
		extractor:  extractor,
		normalizer: normalizer,
		logger:     logger.With("source", source.ID()),
		config:     cfg,
	}
}

type fetchResult struct {
	query string
	items []domain.FeedItem
	err   error
}

// Run executes one ingestion run over the configured queries. A positive
// limit bounds how many queries this invocation processes. Per-query and
// per-candidate failures are folded into the summary; Run itself fails only
// when no work could be attempted at all.
func (s *IngestService) Run(ctx context.Context, limit int) (*domain.RunSummary, error) {
	startTime := time.Now()

	queries := s.config.Queries
	if limit > 0 && limit < len(queries) {
		queries = queries[:limit]
	}

	batchSize := s.config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	s.logger.Info("starting ingestion run",
		"queries", len(queries),
		"batch_size", batchSize,
	)

	summary := &domain.RunSummary{Queries: len(queries)}

	var candidates []domain.Candidate
	var errs []string

	// Fixed-size batches keep concurrency bounded for the rate-limited
	// upstream; every fetch in a batch settles before the next batch
	// starts, and results are read back in submission order so the global
	// candidate ordering stays reproducible.
	for start := 0; start < len(queries); start += batchSize {
		end := start + batchSize
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[start:end]

		results := make([]fetchResult, len(batch))
		var wg sync.WaitGroup
		for i, query := range batch {
			wg.Add(1)
			go func(i int, query string) {
				defer wg.Done()
				items, err := s.source.FetchItems(ctx, query)
				results[i] = fetchResult{query: query, items: items, err: err}
			}(i, query)
		}
		wg.Wait()

		for _, res := range results {
			if res.err != nil {
				s.logger.Warn("query fetch failed", "query", res.query, "error", res.err)
				errs = append(errs, fmt.Sprintf("fetch %q: %v", res.query, res.err))
				continue
			}

			summary.Fetched += len(res.items)
			for _, item := range res.items {
				if candidate, ok := s.normalizer.Normalize(item); ok {
					candidates = append(candidates, candidate)
				}
			}
		}
	}

	summary.Candidates = len(candidates)

	groups := dedup.Collapse(candidates)
	summary.Unique = len(groups)

	s.logger.Info("collected candidates",
		"fetched", summary.Fetched,
		"candidates", summary.Candidates,
		"unique", summary.Unique,
	)

	stats := s.upsertAll(ctx, groups)
	summary.NewIncidents = stats.New
	summary.UpdatedIncidents = stats.Updated
	summary.Skipped = stats.Skipped
	errs = append(errs, stats.Errors...)

	summary.Errors = capErrors(errs, s.config.MaxErrors)
	summary.Duration = time.Since(startTime)

	s.logger.Info("ingestion run completed",
		"new", summary.NewIncidents,
		"updated", summary.UpdatedIncidents,
		"skipped", summary.Skipped,
		"errors", len(errs),
		"duration", summary.Duration,
	)

	return summary, nil
}

// capErrors truncates the error list to keep the run summary bounded.
func capErrors(errs []string, max int) []string {
	if len(errs) <= max {
		return errs
	}
	capped := make([]string, max, max+1)
	copy(capped, errs[:max])
	return append(capped, fmt.Sprintf("... and %d more", len(errs)-max))
}
