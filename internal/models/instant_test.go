package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/models"
)

func TestInstant_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := models.InstantOf(now)

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out models.Instant
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Time().Equal(now))
}

func TestInstant_CorruptedDecodesAsUnset(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "null", raw: `null`},
		{name: "garbage string", raw: `"yesterday-ish"`},
		{name: "negative", raw: `-1500`},
		{name: "float", raw: `17.5`},
		{name: "empty string", raw: `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var i models.Instant
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &i))
			assert.True(t, i.IsZero())
		})
	}
}

func TestInstant_CorruptedFieldDoesNotFailLedger(t *testing.T) {
	raw := `{"namespace":"x","current_hour":1,"current_block":"block_001","session_start":"NaN","hours":{"1":{"total_seconds_elapsed":12,"blocks":{}}}}`

	var l models.Ledger
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.True(t, l.SessionStart.IsZero())
	assert.False(t, l.HasOpenSession())
	assert.Equal(t, 12, l.Hours[1].TotalSecondsElapsed)
}

func TestInstant_SecondsUntil(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	i := models.InstantOf(start)

	assert.Equal(t, 0, models.Instant(0).SecondsUntil(start))
	assert.Equal(t, 0, i.SecondsUntil(start.Add(-time.Minute)), "future start credits nothing")
	assert.Equal(t, 4, i.SecondsUntil(start.Add(4999*time.Millisecond)), "floored to whole seconds")
	assert.Equal(t, 90, i.SecondsUntil(start.Add(90*time.Second)))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", models.FormatClock(0))
	assert.Equal(t, "0:09", models.FormatClock(9))
	assert.Equal(t, "1:05", models.FormatClock(65))
	assert.Equal(t, "50:00", models.FormatClock(3000))
	assert.Equal(t, "0:00", models.FormatClock(-3))
}

func TestLedger_LazyRecords(t *testing.T) {
	l := models.NewLedger(models.DefaultNamespace, 4)
	assert.Len(t, l.Hours, 4)

	bp := l.Block(2, "block_001")
	assert.Equal(t, models.BlockInProgress, bp.Status)
	assert.Empty(t, bp.TabsViewed)
	assert.Same(t, bp, l.Block(2, "block_001"))
	assert.Equal(t, []string{"block_001"}, l.Hour(2).BlockIDs())
}
