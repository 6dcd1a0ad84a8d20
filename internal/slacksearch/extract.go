package slacksearch

import (
	"strings"
)

var jsonUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\"`, `"`,
	`\\`, `\`,
	`\/`, "/",
)

// StringField returns obj[key] when obj is a JSON object and the value is a string.
// Anything else yields "".
func StringField(obj any, key string) string {
	m, ok := obj.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// ObjectField returns obj[key] when both obj and the value are JSON objects.
func ObjectField(obj any, key string) map[string]any {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

// ExtractStringField finds the first `"key":` in text and returns its quoted string value,
// unescaped. It works on raw text without a full parse and returns "" when the key is absent,
// the value is not a string, or the string is unterminated.
func ExtractStringField(text, key string) string {
	needle := `"` + key + `":`
	keyPos := strings.Index(text, needle)
	if keyPos < 0 {
		return ""
	}
	return stringValueAt(text, skipSpace(text, keyPos+len(needle)))
}

// stringValueAt unescapes the quoted string starting at text[pos]. It returns "" when there is no
// terminated string there.
func stringValueAt(text string, pos int) string {
	if pos >= len(text) || text[pos] != '"' {
		return ""
	}
	end := stringEnd(text, pos+1)
	if end < 0 {
		return ""
	}
	return jsonUnescaper.Replace(text[pos+1 : end])
}

// stringEnd returns the index of the quote closing a string whose body starts at text[start],
// or -1 when the string is unterminated.
func stringEnd(text string, start int) int {
	escaped := false
	for i := start; i < len(text); i++ {
		switch {
		case escaped:
			escaped = false
		case text[i] == '\\':
			escaped = true
		case text[i] == '"':
			return i
		}
	}
	return -1
}

// memberValue returns the offset of key's value among the direct members of the object starting
// at obj[0]. Keys of nested objects are not considered. It returns -1 when key is absent.
func memberValue(obj, key string) int {
	depth := 0
	for pos := 0; pos < len(obj); pos++ {
		switch obj[pos] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth <= 0 {
				return -1
			}
		case '"':
			end := stringEnd(obj, pos+1)
			if end < 0 {
				return -1
			}
			if depth == 1 && obj[pos+1:end] == key {
				if colon := skipSpace(obj, end+1); colon < len(obj) && obj[colon] == ':' {
					return skipSpace(obj, colon+1)
				}
			}
			pos = end
		}
	}
	return -1
}

func memberString(obj, key string) string {
	pos := memberValue(obj, key)
	if pos < 0 {
		return ""
	}
	return stringValueAt(obj, pos)
}

// ScanMatches extracts up to MaxResults match records from raw text by scanning the
// messages.matches array for balanced objects. It never fails: text without a matches array
// yields no records.
func ScanMatches(raw string) []MatchRecord {
	keyPos := strings.Index(raw, `"matches"`)
	if keyPos < 0 {
		return nil
	}
	open := strings.IndexByte(raw[keyPos:], '[')
	if open < 0 {
		return nil
	}

	var (
		records  []MatchRecord
		depth    int
		inString bool
		escaped  bool
		objStart int
	)

	for pos := keyPos + open + 1; pos < len(raw) && len(records) < MaxResults; pos++ {
		c := raw[pos]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			if depth == 0 {
				objStart = pos
			}
			depth++
		case '}':
			depth--
			if depth == 0 {
				records = append(records, scanMatchObject(raw[objStart:pos+1]))
			}
		case ']':
			if depth == 0 {
				return records
			}
		}
	}

	return records
}

func scanMatchObject(obj string) MatchRecord {
	id := memberString(obj, "iid")
	if id == "" {
		id = memberString(obj, "id")
	}
	return MatchRecord{
		ID:           id,
		ChannelName:  scanChannelName(obj),
		Username:     memberString(obj, "username"),
		TimestampRaw: memberString(obj, "ts"),
		Text:         memberString(obj, "text"),
		Permalink:    memberString(obj, "permalink"),
	}
}

func scanChannelName(obj string) string {
	pos := memberValue(obj, "channel")
	if pos < 0 || pos >= len(obj) || obj[pos] != '{' {
		return ""
	}
	return memberString(obj[pos:], "name")
}

// reportsNotOK is the text fallback for bodies that cannot be parsed as JSON.
func reportsNotOK(raw string) bool {
	keyPos := strings.Index(raw, `"ok":`)
	for keyPos >= 0 {
		rest := raw[skipSpace(raw, keyPos+len(`"ok":`)):]
		if strings.HasPrefix(rest, "false") {
			return true
		}
		next := strings.Index(raw[keyPos+1:], `"ok":`)
		if next < 0 {
			break
		}
		keyPos += next + 1
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}
