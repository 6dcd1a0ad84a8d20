package slacksearch

import (
	"time"
)

// MaxResults caps the number of matches requested from and accepted out of search.messages.
const MaxResults = 10

// MatchRecord holds the fields of one search.messages match. Missing or non-string fields are
// left empty.
type MatchRecord struct {
	ID           string `json:"id"`
	ChannelName  string `json:"channel_name"`
	Username     string `json:"username"`
	TimestampRaw string `json:"ts"`
	Text         string `json:"text"`
	Permalink    string `json:"permalink"`
}

// Row is one materialized output row of the search_slack table function.
type Row struct {
	ID        string     `json:"id" yaml:"id"`
	Channel   string     `json:"channel" yaml:"channel"`
	Username  string     `json:"username" yaml:"username"`
	Timestamp *time.Time `json:"timestamp" yaml:"timestamp"`
	Text      string     `json:"text" yaml:"text"`
	Permalink string     `json:"permalink" yaml:"permalink"`
}

// ColumnType is the logical type of an output column.
type ColumnType string

const (
	ColumnVarchar   ColumnType = "VARCHAR"
	ColumnTimestamp ColumnType = "TIMESTAMP"
)

// Column describes one output column.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

var outputSchema = []Column{
	{Name: "id", Type: ColumnVarchar},
	{Name: "channel", Type: ColumnVarchar},
	{Name: "username", Type: ColumnVarchar},
	{Name: "timestamp", Type: ColumnTimestamp, Nullable: true},
	{Name: "text", Type: ColumnVarchar},
	{Name: "permalink", Type: ColumnVarchar},
}

// Schema returns a copy of the fixed, ordered output schema.
func Schema() []Column {
	out := make([]Column, len(outputSchema))
	copy(out, outputSchema)
	return out
}
