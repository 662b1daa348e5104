package domain

import "time"

// UpsertStats counts the outcomes of reconciling one deduplicated batch
// against storage.
type UpsertStats struct {
	New     int
	Updated int
	Skipped int
	Errors  []string
}

// RunSummary describes one complete ingestion run.
type RunSummary struct {
	Queries          int           `json:"queries"`
	Fetched          int           `json:"fetched"`
	Candidates       int           `json:"candidates"`
	Unique           int           `json:"unique"`
	NewIncidents     int           `json:"new_incidents"`
	UpdatedIncidents int           `json:"updated_incidents"`
	Skipped          int           `json:"skipped"`
	Errors           []string      `json:"errors,omitempty"`
	Duration         time.Duration `json:"-"`
}
