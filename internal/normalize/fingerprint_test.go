package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crashfeed/testdata/utils"
)

var jan15 = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestDedupeKey_PunctuationAndCaseInsensitive(t *testing.T) {
	a := DedupeKey("Fatal Crash On I-25 Denver", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	b := DedupeKey("fatal crash on i-25 denver!!", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	assert.Equal(t, a, b)
}

func TestDedupeKey_CrossOutletSameEventCollides(t *testing.T) {
	a := DedupeKey("Multi-vehicle crash shuts down I-25 in Denver", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	b := DedupeKey("I-25 Denver crash snarls traffic", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	assert.Equal(t, a, b)
}

func TestDedupeKey_DifferentDaysSplit(t *testing.T) {
	a := DedupeKey("Fatal Crash On I-25 Denver", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	b := DedupeKey("Fatal Crash On I-25 Denver", jan15.AddDate(0, 0, 1), utils.Ptr("Denver"), utils.Ptr("CO"))
	assert.NotEqual(t, a, b)
}

func TestDedupeKey_DifferentCitiesSplit(t *testing.T) {
	a := DedupeKey("Fatal Crash On I-25", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	b := DedupeKey("Fatal Crash On I-25", jan15, utils.Ptr("Colorado Springs"), utils.Ptr("CO"))
	assert.NotEqual(t, a, b)
}

func TestDedupeKey_UnrelatedHeadlinesWithoutRouteSplit(t *testing.T) {
	a := DedupeKey("Two dead in rollover crash", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	b := DedupeKey("Cyclist injured downtown", jan15, utils.Ptr("Denver"), utils.Ptr("CO"))
	assert.NotEqual(t, a, b)
}

func TestDedupeKey_NilLocationFallsBackToHeadline(t *testing.T) {
	a := DedupeKey("Icy pileup on county road", jan15, nil, nil)
	b := DedupeKey("Icy pileup on county road!", jan15, nil, nil)
	c := DedupeKey("A different wreck entirely", jan15, nil, nil)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestExtractRoute(t *testing.T) {
	tests := []struct {
		text     string
		expected string
		ok       bool
	}{
		{"multi vehicle crash shuts down i 25 in denver", "i-25", true},
		{"pileup on interstate 70 near the tunnel", "i-70", true},
		{"crash closes highway 287", "hwy-287", true},
		{"crash on us 36 ramp", "us-36", true},
		{"cyclist injured downtown", "", false},
	}

	for _, tt := range tests {
		route, ok := extractRoute(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.expected, route, tt.text)
	}
}
