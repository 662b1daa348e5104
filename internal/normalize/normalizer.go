package normalize

import (
	"html"
	"regexp"
	"strings"

	"crashfeed/internal/domain"
)

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	embeddedURLRe = regexp.MustCompile(`https?://\S+`)
)

// Normalizer maps one raw feed item into zero or one incident candidate.
// Pure transformation: no I/O, no side effects, dropped items are not
// errors.
type Normalizer struct {
	minSummaryLen int
	gazetteer     *Gazetteer
}

// New creates a normalizer. Summaries shorter than minSummaryLen are
// treated as noise and discarded.
func New(minSummaryLen int, gazetteer *Gazetteer) *Normalizer {
	return &Normalizer{
		minSummaryLen: minSummaryLen,
		gazetteer:     gazetteer,
	}
}

// Normalize converts a raw feed item into a candidate. The second return
// value is false when the item was filtered out.
func (n *Normalizer) Normalize(item domain.FeedItem) (domain.Candidate, bool) {
	headline := cleanTitle(item.Title, item.SourceName)
	if headline == "" {
		return domain.Candidate{}, false
	}

	var summary *string
	if s := cleanText(item.Description); len(s) >= n.minSummaryLen {
		summary = &s
	}

	// Location and date phrases can appear in either field; search the
	// headline first since snippets often mention other towns.
	searchText := headline
	if summary != nil {
		searchText = headline + " " + *summary
	}

	var city, state, country *string
	if c, st, ok := n.gazetteer.Locate(searchText); ok {
		city, state = &c, &st
		us := "US"
		country = &us
	}

	occurredAt := extractOccurredAt(searchText, item.PublishedAt)

	return domain.Candidate{
		Headline:    headline,
		Summary:     summary,
		SourceURL:   item.Link,
		SourceTitle: strings.TrimSpace(cleanText(item.Title)),
		SourceName:  item.SourceName,
		PublishedAt: item.PublishedAt,
		OccurredAt:  occurredAt,
		City:        city,
		State:       state,
		Country:     country,
		DedupeKey:   DedupeKey(headline, occurredAt, city, state),
	}, true
}

// SourceRef builds the provenance record retained through dedup for one
// normalized item.
func SourceRef(c domain.Candidate) domain.SourceRef {
	return domain.SourceRef{
		Title:       c.SourceTitle,
		Snippet:     c.Summary,
		URL:         c.SourceURL,
		PublishedAt: c.PublishedAt,
	}
}

func cleanTitle(title, sourceName string) string {
	s := htmlTagRe.ReplaceAllString(title, "")
	s = html.UnescapeString(s)

	// Feeds commonly separate headline from outlet with a double space or
	// append " - Outlet"; keep only the headline part. The double-space
	// check runs before whitespace collapse, and before URL removal so a
	// stripped URL cannot fake the separator.
	if idx := strings.Index(s, "  "); idx > 0 {
		s = s[:idx]
	}

	s = embeddedURLRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if sourceName != "" {
		s = strings.TrimSuffix(s, " - "+sourceName)
	}
	if idx := strings.LastIndex(s, " - "); idx > 0 && len(s)-idx < 40 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

func cleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = embeddedURLRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
