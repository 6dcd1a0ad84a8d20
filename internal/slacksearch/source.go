package slacksearch

import (
	"context"
	"strings"
)

// Backend names accepted by the configuration.
const (
	BackendHTTP = "http"
	BackendSDK  = "sdk"
)

// Source fetches the ordered match records for one query with a single API round trip.
type Source interface {
	Fetch(ctx context.Context, query string) ([]MatchRecord, error)
}

// HTTPSource pairs the raw Client with a response parser.
type HTTPSource struct {
	client *Client
	parse  ParseFunc
}

// NewHTTPSource returns a Source that fetches through client and decodes with parse
// (Parse when nil).
func NewHTTPSource(client *Client, parse ParseFunc) *HTTPSource {
	if parse == nil {
		parse = Parse
	}
	return &HTTPSource{client: client, parse: parse}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, query string) ([]MatchRecord, error) {
	body, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	records, err := s.parse(body)
	if err != nil {
		return nil, err
	}
	if len(records) > MaxResults {
		records = records[:MaxResults]
	}
	return records, nil
}

// SourceOptions selects and configures a Source.
type SourceOptions struct {
	Backend string
	Parser  string
	Tokens  TokenResolver
	Client  []ClientOption
	SDK     SDKOptions
}

// NewSource builds the Source named by opts.Backend.
func NewSource(opts SourceOptions) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendHTTP:
		parse, err := ParserFor(opts.Parser)
		if err != nil {
			return nil, err
		}
		return NewHTTPSource(NewClient(opts.Tokens, opts.Client...), parse), nil
	case BackendSDK:
		return NewSDKSource(opts.Tokens, opts.SDK), nil
	default:
		return nil, newError(KindConfiguration, "unknown slack search backend %q", opts.Backend)
	}
}
