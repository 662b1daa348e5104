package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"crashfeed/internal/domain"
)

const uniqueViolation = "23505"

type IncidentStore struct {
	db *sqlx.DB
}

func NewIncidentStore(db *sqlx.DB) *IncidentStore {
	return &IncidentStore{db: db}
}

func (s *IncidentStore) GetByDedupeKey(ctx context.Context, key string) (*domain.Incident, error) {
	exec := GetExecutor(ctx, s.db)

	var incident domain.Incident
	query := `
		SELECT id, slug, dedupe_key, headline, summary, city, state, country,
		       occurred_at, extracted_facts, seo_title, seo_description,
		       article_body, created_at, updated_at
		FROM incidents
		WHERE dedupe_key = $1`

	err := sqlx.GetContext(ctx, exec, &incident, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sourcesQuery := `
		SELECT id, incident_id, title, snippet, url, published_at
		FROM incident_sources
		WHERE incident_id = $1
		ORDER BY id`

	if err := sqlx.SelectContext(ctx, exec, &incident.Sources, sourcesQuery, incident.ID); err != nil {
		return nil, err
	}

	return &incident, nil
}

// Create inserts a new incident together with all of its source rows. The
// unique constraints on dedupe_key and slug are mapped to sentinel errors
// so the upsert engine can pick the recovery path.
func (s *IncidentStore) Create(ctx context.Context, incident *domain.Incident, sources []domain.IncidentSource) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO incidents (
			slug, dedupe_key, headline, summary, city, state, country, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := exec.QueryRowxContext(ctx, query,
		incident.Slug,
		incident.DedupeKey,
		incident.Headline,
		incident.Summary,
		incident.City,
		incident.State,
		incident.Country,
		incident.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}

	if err := insertSources(ctx, exec, id, sources); err != nil {
		return 0, err
	}

	return id, nil
}

func (s *IncidentStore) AppendSources(ctx context.Context, incidentID int64, sources []domain.IncidentSource) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	exec := GetExecutor(ctx, s.db)

	query, args := buildSourcesInsert(incidentID, sources)
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	added, err := res.RowsAffected()
	return int(added), err
}

func (s *IncidentStore) UpdateFields(ctx context.Context, incidentID int64, update domain.IncidentUpdate) error {
	exec := GetExecutor(ctx, s.db)

	sets := []string{"updated_at = now()"}
	args := []interface{}{incidentID}

	if update.OccurredAt != nil {
		args = append(args, *update.OccurredAt)
		sets = append(sets, fmt.Sprintf("occurred_at = $%d", len(args)))
	}
	if update.City != nil {
		args = append(args, *update.City)
		sets = append(sets, fmt.Sprintf("city = $%d", len(args)))
	}
	if update.State != nil {
		args = append(args, *update.State)
		sets = append(sets, fmt.Sprintf("state = $%d", len(args)))
	}
	if update.Country != nil {
		args = append(args, *update.Country)
		sets = append(sets, fmt.Sprintf("country = $%d", len(args)))
	}

	query := "UPDATE incidents SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

func (s *IncidentStore) SetEnrichment(ctx context.Context, incidentID int64, facts *domain.ExtractedFacts) error {
	exec := GetExecutor(ctx, s.db)

	query := `
		UPDATE incidents
		SET extracted_facts = $2,
		    seo_title = $3,
		    seo_description = $4,
		    updated_at = now()
		WHERE id = $1`

	_, err := exec.ExecContext(ctx, query,
		incidentID,
		[]byte(facts.Facts),
		facts.SEOTitle,
		facts.SEODescription,
	)
	return err
}

func (s *IncidentStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	exec := GetExecutor(ctx, s.db)

	var exists bool
	err := sqlx.GetContext(ctx, exec, &exists,
		"SELECT EXISTS (SELECT 1 FROM incidents WHERE slug = $1)", slug)
	return exists, err
}

func insertSources(ctx context.Context, exec sqlx.ExtContext, incidentID int64, sources []domain.IncidentSource) error {
	if len(sources) == 0 {
		return nil
	}

	query, args := buildSourcesInsert(incidentID, sources)
	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

// buildSourcesInsert renders a multi-row insert for incident_sources. The
// ON CONFLICT clause makes re-ingesting a known url a no-op.
func buildSourcesInsert(incidentID int64, sources []domain.IncidentSource) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO incident_sources (incident_id, title, snippet, url, published_at) VALUES ")
	args := make([]interface{}, 0, len(sources)*4+1)
	args = append(args, incidentID)

	for i, src := range sources {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := len(args)
		fmt.Fprintf(&sb, "($1, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, src.Title, src.Snippet, src.URL, src.PublishedAt)
	}
	sb.WriteString(" ON CONFLICT (incident_id, url) DO NOTHING")

	return sb.String(), args
}

// mapUniqueViolation converts Postgres unique-constraint errors into the
// domain sentinels the upsert engine branches on.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch {
	case strings.Contains(pqErr.Constraint, "dedupe_key"):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	case strings.Contains(pqErr.Constraint, "slug"):
		return fmt.Errorf("%w: %v", domain.ErrSlugTaken, err)
	default:
		return err
	}
}
