package slacksearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlackTimestamp(t *testing.T) {
	t.Run("fractional seconds", func(t *testing.T) {
		ts := ParseSlackTimestamp("1700000000.500000")
		require.NotNil(t, ts)
		assert.Equal(t, int64(1700000000), ts.Unix())
		assert.Equal(t, 500000, ts.Nanosecond()/1000)
		assert.Equal(t, time.UTC, ts.Location())
	})

	t.Run("whole seconds", func(t *testing.T) {
		ts := ParseSlackTimestamp("1700000500")
		require.NotNil(t, ts)
		assert.True(t, time.Unix(1700000500, 0).Equal(*ts))
	})

	t.Run("truncates toward zero", func(t *testing.T) {
		ts := ParseSlackTimestamp("-1.0000005")
		require.NotNil(t, ts)
		assert.Equal(t, int64(-1000000), ts.UnixMicro())
	})

	for _, raw := range []string{"", "   ", "not-a-number", "17000.00.1", "NaN", "Inf", "1e400"} {
		t.Run("null for "+raw, func(t *testing.T) {
			assert.Nil(t, ParseSlackTimestamp(raw))
		})
	}
}

func TestMaterialize(t *testing.T) {
	row := Materialize(MatchRecord{
		ID:           "i-1",
		ChannelName:  "ops",
		Username:     "alice",
		TimestampRaw: "1700000000.250000",
		Text:         "deploy failed",
		Permalink:    "https://example.slack.com/archives/C1/p1700000000250000",
	})

	assert.Equal(t, "i-1", row.ID)
	assert.Equal(t, "ops", row.Channel)
	assert.Equal(t, "alice", row.Username)
	assert.Equal(t, "deploy failed", row.Text)
	assert.Equal(t, "https://example.slack.com/archives/C1/p1700000000250000", row.Permalink)
	require.NotNil(t, row.Timestamp)
	assert.Equal(t, int64(1700000000250000), row.Timestamp.UnixMicro())
}

func TestMaterializeDegradesBadTimestamp(t *testing.T) {
	row := Materialize(MatchRecord{ID: "x", TimestampRaw: "yesterday"})
	assert.Equal(t, "x", row.ID)
	assert.Nil(t, row.Timestamp)

	row = Materialize(MatchRecord{})
	assert.Equal(t, Row{}, row)
}

func TestMaterializeAllCapsAndKeepsOrder(t *testing.T) {
	records := make([]MatchRecord, 14)
	for i := range records {
		records[i] = MatchRecord{ID: string(rune('a' + i))}
	}

	rows := MaterializeAll(records)
	require.Len(t, rows, MaxResults)
	for i, row := range rows {
		assert.Equal(t, string(rune('a'+i)), row.ID)
	}
	assert.Empty(t, MaterializeAll(nil))
}
