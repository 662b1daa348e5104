package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

var (
	punctuationRe = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	// matches a roadway token in already-normalized text, e.g. "i 25",
	// "us 36", "highway 287"
	routeRe = regexp.MustCompile(`\b(i|us|sr|hwy|highway|route|interstate)\s+(\d{1,3})\b`)
)

var routePrefixes = map[string]string{
	"i":          "i",
	"interstate": "i",
	"us":         "us",
	"sr":         "sr",
	"hwy":        "hwy",
	"highway":    "hwy",
	"route":      "hwy",
}

// DedupeKey derives the stable fingerprint used to recognize that two
// candidates refer to the same event.
//
// Two tiers. When the location is known and the headline names a roadway,
// the key is city+state+day+route: different outlets word the same crash
// differently, but they agree on where and when it happened. Otherwise the
// key falls back to the normalized headline plus day and location, so
// unrelated items cannot collide through location alone. Two same-day
// crashes on the same road in the same metro do collide under the first
// tier; that bounded false-collision rate is the accepted tradeoff of
// day-granularity keys.
func DedupeKey(headline string, occurredAt time.Time, city, state *string) string {
	norm := normalizeHeadline(headline)
	day := occurredAt.UTC().Format("2006-01-02")

	if city != nil && state != nil {
		if route, ok := extractRoute(norm); ok {
			return hashKey("loc", strings.ToLower(*city), strings.ToLower(*state), day, route)
		}
	}

	parts := []string{"headline", norm, day}
	if city != nil {
		parts = append(parts, strings.ToLower(*city))
	}
	if state != nil {
		parts = append(parts, strings.ToLower(*state))
	}
	return hashKey(parts...)
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalizeHeadline(headline string) string {
	s := strings.ToLower(headline)
	s = punctuationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func extractRoute(normalized string) (string, bool) {
	m := routeRe.FindStringSubmatch(normalized)
	if m == nil {
		return "", false
	}
	return routePrefixes[m[1]] + "-" + m[2], true
}
