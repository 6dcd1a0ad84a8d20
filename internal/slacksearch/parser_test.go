package slacksearch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWellFormedMatches(t *testing.T) {
	records, err := Parse([]byte(matchesBody(3)))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, MatchRecord{
		ID:           "m-01",
		ChannelName:  "chan-1",
		Username:     "user-1",
		TimestampRaw: "1700000001.500000",
		Text:         "message 1",
		Permalink:    "https://example.slack.com/archives/C1/p1",
	}, records[1])
}

func TestParseCapsAtMaxResultsPreservingOrder(t *testing.T) {
	records, err := Parse([]byte(matchesBody(25)))
	require.NoError(t, err)
	require.Len(t, records, MaxResults)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("m-%02d", i), rec.ID)
	}
}

func TestParseToleratesMissingAndMistypedFields(t *testing.T) {
	raw := `{"ok":true,"messages":{"matches":[
		"not an object",
		{"id":"fallback-id","channel":"C123","username":7,"ts":1700000000.5,"text":null},
		{"iid":"","id":"also-fallback","channel":{"name":9}},
		42
	]}}`

	records, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, MatchRecord{ID: "fallback-id"}, records[0])
	assert.Equal(t, MatchRecord{ID: "also-fallback"}, records[1])
}

func TestParseUnexpectedShapeYieldsNoRecords(t *testing.T) {
	testCases := map[string]string{
		"root array":          `[1,2,3]`,
		"root string":         `"hello"`,
		"no messages":         `{"ok":true}`,
		"messages not object": `{"ok":true,"messages":[]}`,
		"matches missing":     `{"ok":true,"messages":{"total":0}}`,
		"matches not array":   `{"ok":true,"messages":{"matches":{}}}`,
		"empty matches":       `{"ok":true,"messages":{"matches":[]}}`,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			records, err := Parse([]byte(raw))
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestParseMalformedJSON(t *testing.T) {
	raw := []byte(`{"ok": tru`)

	_, err := Parse(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindParse, perr.Kind)
	assert.Greater(t, perr.Offset, int64(0))
	assert.LessOrEqual(t, perr.Offset, int64(len(raw)))
	assert.NotEmpty(t, perr.Message)
	assert.Contains(t, perr.Error(), "offset")
}

func TestParseTolerantMatchesStrictOnWellFormedInput(t *testing.T) {
	raw := []byte(matchesBody(12))

	strict, err := Parse(raw)
	require.NoError(t, err)
	tolerant, err := ParseTolerant(raw)
	require.NoError(t, err)

	assert.Equal(t, strict, tolerant)
}

func TestParseTolerantNeverFails(t *testing.T) {
	records, err := ParseTolerant([]byte(`{"ok": tru`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParserFor(t *testing.T) {
	for _, name := range []string{"", "strict", " STRICT ", "tolerant"} {
		parse, err := ParserFor(name)
		require.NoError(t, err, name)
		require.NotNil(t, parse, name)
	}

	_, err := ParserFor("yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestAPIErrorFromBody(t *testing.T) {
	t.Run("error field extracted", func(t *testing.T) {
		apiErr := apiErrorFromBody([]byte(`{"ok": false, "error": "invalid_auth"}`))
		require.NotNil(t, apiErr)
		assert.Equal(t, KindAPI, apiErr.Kind)
		assert.Equal(t, "invalid_auth", apiErr.Message)
	})

	t.Run("raw body when error missing", func(t *testing.T) {
		body := `{"ok": false}`
		apiErr := apiErrorFromBody([]byte(body))
		require.NotNil(t, apiErr)
		assert.Contains(t, apiErr.Message, body)
		assert.Equal(t, body, apiErr.Body)
	})

	t.Run("text fallback for invalid json", func(t *testing.T) {
		apiErr := apiErrorFromBody([]byte(`{"ok":false,"error":"ratelimited",`))
		require.NotNil(t, apiErr)
		assert.Equal(t, "ratelimited", apiErr.Message)
	})

	t.Run("ok true or absent is success", func(t *testing.T) {
		assert.Nil(t, apiErrorFromBody([]byte(`{"ok":true}`)))
		assert.Nil(t, apiErrorFromBody([]byte(`{"messages":{}}`)))
		assert.Nil(t, apiErrorFromBody([]byte(`{"ok":"false"}`)))
		assert.Nil(t, apiErrorFromBody([]byte(`not json`)))
	})
}
