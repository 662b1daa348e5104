package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date extraction is an ordered strategy list. Each strategy returns the
// first date it can read from the text; the caller falls back to the feed
// publish time when none hit.

var (
	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	// "January 15, 2025", "Jan. 15, 2025", "Jan 15" (year optional)
	monthDayRe = regexp.MustCompile(`(?i)\b(Jan(?:\.|uary)?|Feb(?:\.|ruary)?|Mar(?:\.|ch)?|Apr(?:\.|il)?|May|Jun(?:\.|e)?|Jul(?:\.|y)?|Aug(?:\.|ust)?|Sep(?:\.|t\.?|tember)?|Oct(?:\.|ober)?|Nov(?:\.|ember)?|Dec(?:\.|ember)?)\s+(\d{1,2})(?:\s*,\s*(\d{4}))?`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

type dateStrategy func(text string, published time.Time) (time.Time, bool)

var dateStrategies = []dateStrategy{
	extractISODate,
	extractMonthDay,
}

// extractOccurredAt resolves the best-effort event timestamp for an item:
// an explicit date phrase in the text when present, the feed publish time
// otherwise. Never fails.
func extractOccurredAt(text string, published time.Time) time.Time {
	for _, strategy := range dateStrategies {
		if t, ok := strategy(text, published); ok {
			return t
		}
	}
	return published
}

func extractISODate(text string, _ time.Time) (time.Time, bool) {
	m := isoDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m[0])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func extractMonthDay(text string, published time.Time) (time.Time, bool) {
	m := monthDayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	prefix := strings.ToLower(m[1])
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	month, ok := monthsByPrefix[prefix]
	if !ok {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	year := published.Year()
	if m[3] != "" {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, false
		}
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	// A yearless phrase resolving to the near future means it referred to
	// the previous year (news published early January about late December).
	if m[3] == "" && !published.IsZero() && t.After(published.AddDate(0, 0, 1)) {
		t = t.AddDate(-1, 0, 0)
	}

	return t, true
}
