// Package dedup collapses a run's candidate set into one representative
// candidate per dedupe key. Pure in-memory reduction: no storage or network
// access, deterministic given stable input ordering.
package dedup

import (
	"time"

	"crashfeed/internal/domain"
	"crashfeed/internal/normalize"
)

// Collapse groups candidates by dedupe key, preserving first-seen order of
// keys, and merges each group into a representative candidate plus the full
// list of source attributions.
func Collapse(candidates []domain.Candidate) []domain.CandidateGroup {
	byKey := make(map[string][]domain.Candidate, len(candidates))
	var order []string

	for _, c := range candidates {
		if _, seen := byKey[c.DedupeKey]; !seen {
			order = append(order, c.DedupeKey)
		}
		byKey[c.DedupeKey] = append(byKey[c.DedupeKey], c)
	}

	groups := make([]domain.CandidateGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, merge(byKey[key]))
	}
	return groups
}

// merge synthesizes the representative for one group: the base is the
// first-seen candidate with the most complete location, the occurrence time
// is the earliest plausible one, and disagreeing city/state values resolve
// by frequency with first-seen winning ties.
func merge(group []domain.Candidate) domain.CandidateGroup {
	rep := group[0]
	best := locationScore(rep)
	for _, c := range group[1:] {
		if s := locationScore(c); s > best {
			rep, best = c, s
		}
	}

	rep.OccurredAt = earliestOccurredAt(group)
	rep.City = mostFrequent(group, func(c domain.Candidate) *string { return c.City })
	rep.State = mostFrequent(group, func(c domain.Candidate) *string { return c.State })
	rep.Country = mostFrequent(group, func(c domain.Candidate) *string { return c.Country })

	if rep.Summary == nil {
		for _, c := range group {
			if c.Summary != nil {
				rep.Summary = c.Summary
				break
			}
		}
	}

	sources := make([]domain.SourceRef, 0, len(group))
	for _, c := range group {
		sources = append(sources, normalize.SourceRef(c))
	}

	return domain.CandidateGroup{Candidate: rep, Sources: sources}
}

func locationScore(c domain.Candidate) int {
	score := 0
	if c.City != nil {
		score += 2
	}
	if c.State != nil {
		score++
	}
	return score
}

func earliestOccurredAt(group []domain.Candidate) time.Time {
	var earliest time.Time
	for _, c := range group {
		if c.OccurredAt.IsZero() {
			continue
		}
		if earliest.IsZero() || c.OccurredAt.Before(earliest) {
			earliest = c.OccurredAt
		}
	}
	return earliest
}

// mostFrequent picks the most common non-nil value for a field across the
// group; ties resolve to the value seen first.
func mostFrequent(group []domain.Candidate, field func(domain.Candidate) *string) *string {
	counts := make(map[string]int)
	var order []string

	for _, c := range group {
		v := field(c)
		if v == nil {
			continue
		}
		if _, seen := counts[*v]; !seen {
			order = append(order, *v)
		}
		counts[*v]++
	}

	var winner *string
	bestCount := 0
	for i := range order {
		if counts[order[i]] > bestCount {
			winner = &order[i]
			bestCount = counts[order[i]]
		}
	}
	return winner
}
