package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDFormat(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-01T12-00-00Z", RunID(fixed))
}

func TestRunIDNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	local := time.Date(2025, 1, 1, 14, 0, 0, 0, loc)
	assert.Equal(t, "2025-01-01T12-00-00Z", RunID(local), "run ids are always UTC")
}

func TestParseRunIDRoundTrip(t *testing.T) {
	fixed := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	parsed, ok := ParseRunID(RunID(fixed))
	require.True(t, ok, "round-tripped run id must parse")
	assert.True(t, parsed.Equal(fixed))
}

func TestParseRunIDRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-a-run", "2025-01-01T12:00:00Z", "payload"} {
		_, ok := ParseRunID(s)
		assert.False(t, ok, "expected %q to be rejected", s)
	}
}

func TestFixedClock(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := Fixed{T: fixed}
	assert.True(t, clk.Now().Equal(fixed))
	assert.Equal(t, "2025-01-01T12:00:00Z", Timestamp(clk.Now()))
}

func TestSystemClockIsUTC(t *testing.T) {
	now := System().Now()
	assert.Equal(t, time.UTC, now.Location(), "system clock must report UTC")
}
