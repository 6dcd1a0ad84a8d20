package slacksearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const searchMethod = "search.messages"

// maxResponseBytes bounds how much of a search.messages body is read into memory.
var maxResponseBytes int64 = 8 << 20

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues search.messages requests and classifies their outcome. It returns the raw body
// so callers can pick a parser.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	tokens     TokenResolver
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(h HTTPDoer) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBaseURL overrides the Web API root (default slack.APIURL).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(base) != "" {
			c.baseURL = base
		}
	}
}

// WithRateLimiter makes every request wait on l first. A nil limiter disables limiting.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithClientLogger overrides the default logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Client resolving its bearer token through tokens.
func NewClient(tokens TokenResolver, opts ...ClientOption) *Client {
	if tokens == nil {
		tokens = EnvToken(DefaultTokenEnv)
	}
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    slack.APIURL,
		tokens:     tokens,
		logger:     log.New(log.Default().Writer(), "slacksearch/client ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search performs exactly one search.messages round trip for query and returns the response body.
// Failures are *Error values of kind Configuration, Transport, HTTPStatus or API, in that order of
// precedence.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := slackSearchTracer.Start(ctx, "slacksearch.client.search")
	defer span.End()

	queryHash := telemetryFingerprint(query)
	span.SetAttributes(attribute.String("slack.query_hash", queryHash))

	body, err := c.search(ctx, query)
	if err != nil {
		kind, _ := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		c.logger.Printf("Slack search failed hash=%s kind=%s", queryHash, kind)
		return nil, err
	}

	span.SetAttributes(attribute.Int("slack.response_bytes", len(body)))
	c.logger.Printf("Slack search completed hash=%s bytes=%d", queryHash, len(body))
	return body, nil
}

func (c *Client) search(ctx context.Context, query string) ([]byte, error) {
	token, err := c.tokens.ResolveToken()
	if err != nil {
		if _, ok := KindOf(err); ok {
			return nil, err
		}
		return nil, &Error{Kind: KindConfiguration, Message: "resolve slack token", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query), nil)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Message: "build slack search request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTransport, Message: "slack search rate limiter", Cause: limiterError(ctx, err)}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "slack search request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := readResponseBody(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := classifyResponse(resp.StatusCode, resp.Status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// readResponseBody reads at most maxResponseBytes. A larger body is a transport error.
func readResponseBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "read slack search response", Cause: err}
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, newError(KindTransport, "slack search response exceeds %d bytes", maxResponseBytes)
	}
	return body, nil
}

// classifyResponse applies the HTTP status and ok=false checks to a fully read response.
func classifyResponse(statusCode int, status string, body []byte) *Error {
	if statusCode != http.StatusOK {
		return &Error{
			Kind:       KindHTTPStatus,
			Message:    fmt.Sprintf("unexpected status %d", statusCode),
			StatusCode: statusCode,
			Body:       string(body),
			Cause:      slack.StatusCodeError{Code: statusCode, Status: status},
		}
	}
	if apiErr := apiErrorFromBody(body); apiErr != nil {
		apiErr.Cause = slack.SlackErrorResponse{Err: apiErr.Message}
		return apiErr
	}
	return nil
}

// limiterError makes a limiter refusal caused by the context deadline match context.DeadlineExceeded.
func limiterError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (c *Client) searchURL(query string) string {
	base := c.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + searchMethod + "?query=" + percentEncode(query) + fmt.Sprintf("&count=%d", MaxResults)
}

// percentEncode escapes query for the URL query string, encoding spaces as %20.
func percentEncode(query string) string {
	return strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}
