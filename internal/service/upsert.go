package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crashfeed/internal/domain"
)

const maxSlugAttempts = 3

// upsertAll reconciles the deduplicated groups against storage, exactly once
// per dedupe key. One candidate's failure never aborts the batch.
func (s *IngestService) upsertAll(ctx context.Context, groups []domain.CandidateGroup) domain.UpsertStats {
	var stats domain.UpsertStats

	for _, group := range groups {
		outcome, err := s.upsertGroup(ctx, group)
		if err != nil {
			s.logger.Warn("upsert failed",
				"headline", group.Candidate.Headline,
				"error", err,
			)
			stats.Errors = append(stats.Errors, fmt.Sprintf("upsert %q: %v", group.Candidate.Headline, err))
			continue
		}

		switch outcome {
		case outcomeCreated:
			stats.New++
		case outcomeUpdated:
			stats.Updated++
		case outcomeSkipped:
			stats.Skipped++
		}
	}

	return stats
}

type upsertOutcome int

const (
	outcomeCreated upsertOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (s *IngestService) upsertGroup(ctx context.Context, group domain.CandidateGroup) (upsertOutcome, error) {
	existing, err := s.incidents.GetByDedupeKey(ctx, group.Candidate.DedupeKey)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("lookup incident: %w", err)
	}

	if existing == nil {
		incident, err := s.createIncident(ctx, group)
		if errors.Is(err, domain.ErrDuplicateKey) {
			// Lost a race with a concurrent run on the same dedupe key; the
			// uniqueness constraint is the arbiter, fall through to update.
			existing, err = s.incidents.GetByDedupeKey(ctx, group.Candidate.DedupeKey)
			if err != nil {
				return outcomeSkipped, fmt.Errorf("refetch after duplicate key: %w", err)
			}
			if existing == nil {
				return outcomeSkipped, domain.ErrDuplicateKey
			}
			return s.updateIncident(ctx, existing, group)
		}
		if err != nil {
			return outcomeSkipped, err
		}

		s.enrichIncident(ctx, incident)
		s.publish(ctx, incident, true)
		return outcomeCreated, nil
	}

	return s.updateIncident(ctx, existing, group)
}

func (s *IngestService) createIncident(ctx context.Context, group domain.CandidateGroup) (*domain.Incident, error) {
	c := group.Candidate

	incident := &domain.Incident{
		DedupeKey:  c.DedupeKey,
		Headline:   c.Headline,
		Summary:    c.Summary,
		City:       c.City,
		State:      c.State,
		Country:    c.Country,
		OccurredAt: c.OccurredAt,
	}

	sources := toSourceRows(group.Sources)

	slug := slugify(c.Headline)
	taken, err := s.incidents.SlugExists(ctx, slug)
	if err != nil {
		// The unique constraint still catches a collision; the retry loop
		// below recovers, so a failed pre-check only costs one attempt.
		s.logger.Warn("slug lookup failed", "slug", slug, "error", err)
	} else if taken {
		slug = slug + "-" + slugSuffix()
	}

	var lastErr error
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		incident.Slug = slug

		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			id, err := s.incidents.Create(txCtx, incident, sources)
			if err != nil {
				return err
			}
			incident.ID = id
			return nil
		})
		if err == nil {
			incident.Sources = sources
			return incident, nil
		}
		if !errors.Is(err, domain.ErrSlugTaken) {
			return nil, err
		}

		lastErr = err
		slug = slugify(c.Headline) + "-" + slugSuffix()
	}

	return nil, fmt.Errorf("generate unique slug: %w", lastErr)
}

func (s *IngestService) updateIncident(ctx context.Context, existing *domain.Incident, group domain.CandidateGroup) (upsertOutcome, error) {
	c := group.Candidate

	var newSources []domain.IncidentSource
	for _, row := range toSourceRows(group.Sources) {
		if !existing.HasSourceURL(row.URL) {
			newSources = append(newSources, row)
		}
	}

	update := buildFieldUpdate(existing, c)

	if len(newSources) == 0 && update.IsEmpty() {
		return outcomeSkipped, nil
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(newSources) > 0 {
			if _, err := s.incidents.AppendSources(txCtx, existing.ID, newSources); err != nil {
				return fmt.Errorf("append sources: %w", err)
			}
		}
		// UpdateFields always bumps updated_at, even for a source-only change.
		if err := s.incidents.UpdateFields(txCtx, existing.ID, update); err != nil {
			return fmt.Errorf("update fields: %w", err)
		}
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}

	applyUpdate(existing, update)
	existing.Sources = append(existing.Sources, newSources...)
	s.publish(ctx, existing, false)

	return outcomeUpdated, nil
}

// buildFieldUpdate keeps only strictly-more-specific data: a known value is
// never overwritten with an unknown one, and the occurrence time only moves
// earlier.
func buildFieldUpdate(existing *domain.Incident, c domain.Candidate) domain.IncidentUpdate {
	var update domain.IncidentUpdate

	if !c.OccurredAt.IsZero() && (existing.OccurredAt.IsZero() || c.OccurredAt.Before(existing.OccurredAt)) {
		t := c.OccurredAt
		update.OccurredAt = &t
	}
	if existing.City == nil && c.City != nil {
		update.City = c.City
	}
	if existing.State == nil && c.State != nil {
		update.State = c.State
	}
	if existing.Country == nil && c.Country != nil {
		update.Country = c.Country
	}

	return update
}

func applyUpdate(incident *domain.Incident, update domain.IncidentUpdate) {
	if update.OccurredAt != nil {
		incident.OccurredAt = *update.OccurredAt
	}
	if update.City != nil {
		incident.City = update.City
	}
	if update.State != nil {
		incident.State = update.State
	}
	if update.Country != nil {
		incident.Country = update.Country
	}
	incident.UpdatedAt = time.Now().UTC()
}

func toSourceRows(refs []domain.SourceRef) []domain.IncidentSource {
	rows := make([]domain.IncidentSource, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, domain.IncidentSource{
			Title:       ref.Title,
			Snippet:     ref.Snippet,
			URL:         ref.URL,
			PublishedAt: ref.PublishedAt,
		})
	}
	return rows
}

// enrichIncident asks the text-generation collaborator for structured facts
// and SEO fields. Best effort: any failure is logged and ignored.
func (s *IngestService) enrichIncident(ctx context.Context, incident *domain.Incident) {
	if s.extractor == nil {
		return
	}

	snippets := make([]string, 0, len(incident.Sources))
	for _, src := range incident.Sources {
		if src.Snippet != nil {
			snippets = append(snippets, *src.Snippet)
		}
	}

	facts, err := s.extractor.Extract(ctx, incident.Headline, snippets)
	if err != nil || facts == nil {
		if err != nil {
			s.logger.Warn("fact extraction failed", "incident_id", incident.ID, "error", err)
		}
		return
	}

	if err := s.incidents.SetEnrichment(ctx, incident.ID, facts); err != nil {
		s.logger.Warn("store enrichment failed", "incident_id", incident.ID, "error", err)
	}
}

func (s *IngestService) publish(ctx context.Context, incident *domain.Incident, isNew bool) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, incident, isNew); err != nil {
		s.logger.Warn("publish incident event failed", "incident_id", incident.ID, "error", err)
	}
}
