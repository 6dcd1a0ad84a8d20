package slacksearch

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Materialize maps a match record into an output row. It never fails: an empty or
// unparseable timestamp becomes a null timestamp.
func Materialize(m MatchRecord) Row {
	return Row{
		ID:        m.ID,
		Channel:   m.ChannelName,
		Username:  m.Username,
		Timestamp: ParseSlackTimestamp(m.TimestampRaw),
		Text:      m.Text,
		Permalink: m.Permalink,
	}
}

// MaterializeAll maps records in order, keeping at most MaxResults rows.
func MaterializeAll(records []MatchRecord) []Row {
	if len(records) > MaxResults {
		records = records[:MaxResults]
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Materialize(rec))
	}
	return rows
}

// ParseSlackTimestamp converts a "<seconds>.<micros>" Slack ts into a UTC time with microsecond
// precision. The value is read as floating-point seconds, scaled by 1e6 and truncated toward
// zero. It returns nil for empty or non-numeric input.
func ParseSlackTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil
	}
	micros := math.Trunc(seconds * 1e6)
	if micros >= math.MaxInt64 || micros < math.MinInt64 {
		return nil
	}
	ts := time.UnixMicro(int64(micros)).UTC()
	return &ts
}
