package normalize

import (
	"regexp"
	"strings"

	"crashfeed/internal/config"
)

// Metro is one tracked metro area the gazetteer can match against free text.
type Metro struct {
	City  string
	State string
}

// Gazetteer resolves coarse city/state pairs from headline or snippet text.
// Lookup is a best-effort ordered strategy list: an explicit "City, ST"
// phrase wins over a bare city mention, and no match is not an error.
type Gazetteer struct {
	metros []Metro

	// compiled per metro, same index as metros
	cityStateRe []*regexp.Regexp
	cityRe      []*regexp.Regexp
}

// NewGazetteer builds a gazetteer for the given metros. An empty list falls
// back to the default tracked set.
func NewGazetteer(metros []Metro) *Gazetteer {
	if len(metros) == 0 {
		metros = defaultMetros
	}

	g := &Gazetteer{
		metros:      metros,
		cityStateRe: make([]*regexp.Regexp, len(metros)),
		cityRe:      make([]*regexp.Regexp, len(metros)),
	}
	for i, m := range metros {
		city := regexp.QuoteMeta(m.City)
		state := regexp.QuoteMeta(m.State)
		g.cityStateRe[i] = regexp.MustCompile(`(?i)\b` + city + `\s*,\s*` + state + `\b`)
		g.cityRe[i] = regexp.MustCompile(`(?i)\b` + city + `\b`)
	}
	return g
}

// FromConfig converts configured metros into gazetteer entries.
func FromConfig(metros []config.MetroConfig) []Metro {
	out := make([]Metro, 0, len(metros))
	for _, m := range metros {
		out = append(out, Metro{City: m.City, State: strings.ToUpper(m.State)})
	}
	return out
}

// Locate returns the first tracked metro mentioned in text, trying the
// explicit "City, ST" form across all metros before bare city names.
func (g *Gazetteer) Locate(text string) (city, state string, ok bool) {
	for i, re := range g.cityStateRe {
		if re.MatchString(text) {
			return g.metros[i].City, g.metros[i].State, true
		}
	}
	for i, re := range g.cityRe {
		if re.MatchString(text) {
			return g.metros[i].City, g.metros[i].State, true
		}
	}
	return "", "", false
}

// defaultMetros is the set of metro areas the funnel currently targets.
var defaultMetros = []Metro{
	{City: "Denver", State: "CO"},
	{City: "Colorado Springs", State: "CO"},
	{City: "Aurora", State: "CO"},
	{City: "Phoenix", State: "AZ"},
	{City: "Tucson", State: "AZ"},
	{City: "Houston", State: "TX"},
	{City: "Dallas", State: "TX"},
	{City: "Austin", State: "TX"},
	{City: "San Antonio", State: "TX"},
	{City: "Atlanta", State: "GA"},
	{City: "Chicago", State: "IL"},
	{City: "Las Vegas", State: "NV"},
	{City: "Los Angeles", State: "CA"},
	{City: "San Diego", State: "CA"},
	{City: "Sacramento", State: "CA"},
	{City: "Seattle", State: "WA"},
	{City: "Portland", State: "OR"},
	{City: "Miami", State: "FL"},
	{City: "Orlando", State: "FL"},
	{City: "Tampa", State: "FL"},
}
