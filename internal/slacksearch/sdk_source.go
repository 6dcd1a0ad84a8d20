package slacksearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type slackSearchClient interface {
	SearchMessagesContext(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error)
}

// SDKOptions configures the slack-go backed source.
type SDKOptions struct {
	APIURL     string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SDKSource fetches matches through the slack-go Web API client. slack-go issues the request, while
// the outcome is decided from the raw response body so it classifies and tolerates fields exactly
// like HTTPSource with the strict parser.
type SDKSource struct {
	tokens     TokenResolver
	httpClient *http.Client
	newClient  func(token string, httpClient *http.Client) slackSearchClient
	logger     *log.Logger
}

// NewSDKSource constructs an SDKSource. A new slack.Client is built per Fetch so the token is
// resolved at first use.
func NewSDKSource(tokens TokenResolver, opts SDKOptions) *SDKSource {
	if tokens == nil {
		tokens = EnvToken(DefaultTokenEnv)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Default().Writer(), "slacksearch/sdk ", log.LstdFlags)
	}

	apiURL := opts.APIURL
	return &SDKSource{
		tokens:     tokens,
		httpClient: opts.HTTPClient,
		newClient: func(token string, httpClient *http.Client) slackSearchClient {
			clientOpts := []slack.Option{slack.OptionHTTPClient(httpClient)}
			if apiURL != "" {
				clientOpts = append(clientOpts, slack.OptionAPIURL(apiURL))
			}
			return slack.New(token, clientOpts...)
		},
		logger: logger,
	}
}

// Fetch implements Source.
func (s *SDKSource) Fetch(ctx context.Context, query string) ([]MatchRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := slackSearchTracer.Start(ctx, "slacksearch.sdk.search")
	defer span.End()

	queryHash := telemetryFingerprint(query)
	span.SetAttributes(attribute.String("slack.query_hash", queryHash))

	token, err := s.tokens.ResolveToken()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindConfiguration.String())
		if _, ok := KindOf(err); ok {
			return nil, err
		}
		return nil, &Error{Kind: KindConfiguration, Message: "resolve slack token", Cause: err}
	}

	params := slack.NewSearchParameters()
	params.Count = MaxResults
	params.Highlight = false

	recorder := &responseRecorder{}
	result, sdkErr := s.newClient(token, s.recordingClient(recorder)).SearchMessagesContext(ctx, query, params)

	records, err := s.outcome(recorder, result, sdkErr)
	if err != nil {
		kind, _ := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		s.logger.Printf("Slack search failed hash=%s kind=%s", queryHash, kind)
		return nil, err
	}

	span.SetAttributes(attribute.Int("slack.messages_returned", len(records)))
	s.logger.Printf("Slack search completed hash=%s returned=%d", queryHash, len(records))
	return records, nil
}

func (s *SDKSource) recordingClient(recorder *responseRecorder) *http.Client {
	var client http.Client
	if s.httpClient != nil {
		client = *s.httpClient
	}
	recorder.base = client.Transport
	if recorder.base == nil {
		recorder.base = http.DefaultTransport
	}
	client.Transport = recorder
	return &client
}

func (s *SDKSource) outcome(recorder *responseRecorder, result *slack.SearchMessages, sdkErr error) ([]MatchRecord, error) {
	if recorder.err != nil {
		return nil, recorder.err
	}
	if !recorder.seen {
		// No response reached the transport: the request itself failed or the client is not HTTP backed.
		if sdkErr != nil {
			return nil, classifySDKError(sdkErr)
		}
		return convertSearchMessages(result), nil
	}

	if serr := classifyResponse(recorder.statusCode, recorder.status, recorder.body); serr != nil {
		if sdkErr != nil && serr.Kind == KindHTTPStatus {
			serr.Cause = sdkErr
		}
		return nil, serr
	}
	if sdkErr != nil {
		s.logger.Printf("slack-go could not decode the response, using raw body: %v", sdkErr)
	}
	return Parse(recorder.body)
}

// responseRecorder is an http.RoundTripper that keeps a copy of the single response body it sees.
type responseRecorder struct {
	base http.RoundTripper

	seen       bool
	statusCode int
	status     string
	body       []byte
	err        error
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponseBody(resp.Body)
	if err != nil {
		r.err = err
		return nil, err
	}

	r.seen = true
	r.statusCode = resp.StatusCode
	r.status = resp.Status
	r.body = body

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func convertSearchMessages(result *slack.SearchMessages) []MatchRecord {
	if result == nil {
		return nil
	}
	records := make([]MatchRecord, 0, min(len(result.Matches), MaxResults))
	for _, match := range result.Matches {
		if len(records) == MaxResults {
			break
		}
		records = append(records, MatchRecord{
			ChannelName:  match.Channel.Name,
			Username:     match.Username,
			TimestampRaw: match.Timestamp,
			Text:         match.Text,
			Permalink:    match.Permalink,
		})
	}
	return records
}

func classifySDKError(err error) *Error {
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &Error{
			Kind:       KindHTTPStatus,
			Message:    "rate limited",
			StatusCode: http.StatusTooManyRequests,
			Cause:      err,
		}
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		return &Error{
			Kind:       KindHTTPStatus,
			Message:    statusErr.Status,
			StatusCode: statusErr.Code,
			Cause:      err,
		}
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindAPI, Message: apiErr.Err, Cause: err}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{Kind: KindParse, Message: syntaxErr.Error(), Offset: syntaxErr.Offset, Cause: err}
	}

	return &Error{Kind: KindTransport, Message: "slack search request failed", Cause: err}
}
