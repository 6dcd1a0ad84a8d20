package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/slackscan/internal/config"
	"github.com/ca-srg/slackscan/internal/slacksearch"
)

// newEchoSlackAPI answers search.messages with one match whose text echoes the query.
// The query "fail" yields an ok:false body.
func newEchoSlackAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		if query == "fail" {
			fmt.Fprint(w, `{"ok":false,"error":"invalid_auth"}`)
			return
		}
		text, _ := json.Marshal(query)
		fmt.Fprintf(w, `{"ok":true,"messages":{"matches":[{"iid":"i-%d","channel":{"name":"ops"},"username":"alice","ts":"1700000000.250000","text":%s,"permalink":"https://example.slack.com/p1"}]}}`,
			len(query), text)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(server *httptest.Server) *config.Config {
	return &config.Config{
		SlackAPIBaseURL: server.URL + "/",
		Backend:         "http",
		Parser:          "strict",
		SearchTimeout:   5 * time.Second,
	}
}

func TestRunScansKeepsArgumentOrder(t *testing.T) {
	t.Setenv(slacksearch.DefaultTokenEnv, "xoxp-test")
	server := newEchoSlackAPI(t)

	table, err := newTableFunction(testConfig(server), "", "")
	require.NoError(t, err)

	queries := []string{"alpha", "bravo charlie", "delta", "echo", "foxtrot"}
	results, err := runScans(context.Background(), table, queries, 1, 3)
	require.NoError(t, err)
	require.Len(t, results, len(queries))

	for i, res := range results {
		assert.Equal(t, queries[i], res.Query)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, queries[i], res.Rows[0].Text)
		assert.Equal(t, "ops", res.Rows[0].Channel)
		assert.NotEmpty(t, res.ScanID)
	}
}

func TestRunScansReportsFailuresPerQuery(t *testing.T) {
	t.Setenv(slacksearch.DefaultTokenEnv, "xoxp-test")
	server := newEchoSlackAPI(t)

	table, err := newTableFunction(testConfig(server), "", "tolerant")
	require.NoError(t, err)

	results, err := runScans(context.Background(), table, []string{"ok", "fail", "  "}, slacksearch.DefaultBatchSize, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, slacksearch.ErrExecution)
	assert.ErrorIs(t, err, slacksearch.ErrArgument)

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.Len(t, results[0].Rows, 1)
	assert.Contains(t, results[1].Error, "invalid_auth")
	assert.Empty(t, results[1].Rows)
	assert.NotEmpty(t, results[2].Error)
}

func TestNewTableFunctionRejectsUnknownBackend(t *testing.T) {
	_, err := newTableFunction(&config.Config{SlackAPIBaseURL: "https://slack.com/api/"}, "grpc", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, slacksearch.ErrConfiguration)
}

func sampleResults() []scanResult {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 250000000, time.UTC)
	return []scanResult{
		{
			Query:  "deploy",
			ScanID: "scan-1",
			Rows: []slacksearch.Row{
				{ID: "i-1", Channel: "ops", Username: "alice", Timestamp: &ts, Text: "deploy\nfailed", Permalink: "https://example.slack.com/p1"},
				{ID: "i-2", Channel: "ops", Username: "bob", Text: "no time"},
			},
		},
		{Query: "fail", Rows: []slacksearch.Row{}, Error: "slack api error: invalid_auth"},
	}
}

func TestWriteResultsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, outputTable, sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "=== deploy ===")
	assert.Contains(t, out, "2023-11-14 22:13:20.250000")
	assert.Contains(t, out, "deploy failed")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "error: slack api error: invalid_auth")
}

func TestWriteResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, outputJSON, sampleResults()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	rows := decoded[0]["rows"].([]any)
	first := rows[0].(map[string]any)
	assert.Equal(t, "2023-11-14T22:13:20.25Z", first["timestamp"])
	assert.Nil(t, rows[1].(map[string]any)["timestamp"])
	assert.Equal(t, "slack api error: invalid_auth", decoded[1]["error"])
}

func TestWriteResultsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, outputYAML, sampleResults()))

	var decoded []scanResult
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "scan-1", decoded[0].ScanID)
	require.NotNil(t, decoded[0].Rows[0].Timestamp)
	assert.Equal(t, int64(1700000000250000), decoded[0].Rows[0].Timestamp.UnixMicro())
	assert.Nil(t, decoded[0].Rows[1].Timestamp)
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", singleLine("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", singleLine("abcdefghijklmnop", 10))
}
