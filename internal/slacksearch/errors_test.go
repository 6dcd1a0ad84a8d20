package slacksearch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	testCases := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "http status",
			err:  &Error{Kind: KindHTTPStatus, StatusCode: 503, Body: "busy", Cause: errors.New("ignored")},
			want: "slack api returned status 503: busy",
		},
		{
			name: "api",
			err:  &Error{Kind: KindAPI, Message: "invalid_auth"},
			want: "slack api error: invalid_auth",
		},
		{
			name: "parse",
			err:  &Error{Kind: KindParse, Offset: 12, Message: "unexpected end of JSON input"},
			want: "parse slack response at offset 12: unexpected end of JSON input",
		},
		{
			name: "transport with cause",
			err:  &Error{Kind: KindTransport, Message: "slack search request failed", Cause: errors.New("dial tcp: refused")},
			want: "slack search request failed: dial tcp: refused",
		},
		{
			name: "argument",
			err:  newError(KindArgument, "search_slack expects %d argument, got %d", 1, 2),
			want: "search_slack expects 1 argument, got 2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}

	var nilErr *Error
	assert.Empty(t, nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestErrorIsMatchesKindThroughWrapping(t *testing.T) {
	inner := &Error{Kind: KindParse, Message: "bad", Offset: 3}
	wrapped := fmt.Errorf("scan 42: %w", wrapExecution(inner))

	assert.True(t, errors.Is(wrapped, ErrExecution))
	assert.True(t, errors.Is(wrapped, ErrParse))
	assert.False(t, errors.Is(wrapped, ErrAPI))
	assert.False(t, errors.Is(errors.New("plain"), ErrParse))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindExecution, kind)

	root, ok := RootKind(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindParse, root)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	_, ok = RootKind(nil)
	assert.False(t, ok)
}

func TestWrapExecutionKeepsCauseMessage(t *testing.T) {
	err := wrapExecution(&Error{Kind: KindAPI, Message: "channel_not_found"})
	assert.Equal(t, "failed to search slack: slack api error: channel_not_found", err.Error())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "http_status", KindHTTPStatus.String())
	assert.Equal(t, "execution", KindExecution.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestTokenResolvers(t *testing.T) {
	t.Setenv("SLACKSCAN_TOKEN_TEST", "  xoxp-env  ")
	token, err := EnvToken("SLACKSCAN_TOKEN_TEST").ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "xoxp-env", token)

	t.Setenv(DefaultTokenEnv, "")
	_, err = EnvToken("").ResolveToken()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), DefaultTokenEnv)

	_, err = StaticToken("").ResolveToken()
	assert.True(t, errors.Is(err, ErrConfiguration))

	token, err = TokenResolverFunc(func() (string, error) { return "fn", nil }).ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "fn", token)
}
