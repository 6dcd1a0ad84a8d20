package slacksearch

import (
	"encoding/json"
	"errors"
	"strings"
)

// Parser names accepted by ParserFor.
const (
	ParserStrict   = "strict"
	ParserTolerant = "tolerant"
)

// ParseFunc turns a search.messages body into at most MaxResults match records.
type ParseFunc func(raw []byte) ([]MatchRecord, error)

// ParserFor resolves a parser by name. An empty name selects the strict parser.
func ParserFor(name string) (ParseFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ParserStrict:
		return Parse, nil
	case ParserTolerant:
		return ParseTolerant, nil
	default:
		return nil, newError(KindConfiguration, "unknown slack response parser %q", name)
	}
}

// Parse decodes raw into a JSON tree and walks messages.matches in order. Malformed JSON is a
// KindParse error; a well-formed body without the expected shape yields no records.
func Parse(raw []byte) ([]MatchRecord, error) {
	root, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}

	matches, ok := ObjectField(root, "messages")["matches"].([]any)
	if !ok {
		return nil, nil
	}

	records := make([]MatchRecord, 0, min(len(matches), MaxResults))
	for _, match := range matches {
		if len(records) == MaxResults {
			break
		}
		obj, ok := match.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, recordFromObject(obj))
	}
	return records, nil
}

// ParseTolerant scans raw text for match objects without building a tree. It never fails.
func ParseTolerant(raw []byte) ([]MatchRecord, error) {
	return ScanMatches(string(raw)), nil
}

func recordFromObject(obj map[string]any) MatchRecord {
	id := StringField(obj, "iid")
	if id == "" {
		id = StringField(obj, "id")
	}
	return MatchRecord{
		ID:           id,
		ChannelName:  StringField(ObjectField(obj, "channel"), "name"),
		Username:     StringField(obj, "username"),
		TimestampRaw: StringField(obj, "ts"),
		Text:         StringField(obj, "text"),
		Permalink:    StringField(obj, "permalink"),
	}
}

func decodeTree(raw []byte) (any, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		perr := &Error{Kind: KindParse, Message: err.Error(), Cause: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			perr.Offset = syntaxErr.Offset
		}
		return nil, perr
	}
	return root, nil
}

// apiErrorFromBody inspects a 200 response for ok=false. It returns nil when the body does not
// report failure.
func apiErrorFromBody(raw []byte) *Error {
	var (
		notOK   bool
		message string
	)

	if root, err := decodeTree(raw); err == nil {
		obj, _ := root.(map[string]any)
		if ok, isBool := obj["ok"].(bool); isBool && !ok {
			notOK = true
			message = StringField(root, "error")
		}
	} else if reportsNotOK(string(raw)) {
		notOK = true
		message = ExtractStringField(string(raw), "error")
	}

	if !notOK {
		return nil
	}
	if message == "" {
		return &Error{Kind: KindAPI, Message: string(raw), Body: string(raw)}
	}
	return &Error{Kind: KindAPI, Message: message}
}
