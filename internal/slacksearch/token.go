package slacksearch

import (
	"os"
	"strings"
)

// DefaultTokenEnv is the environment variable holding the Slack bearer token.
const DefaultTokenEnv = "SLACK_API_TOKEN"

// TokenResolver supplies the bearer token used for each search request.
type TokenResolver interface {
	ResolveToken() (string, error)
}

// TokenResolverFunc adapts a plain function to TokenResolver.
type TokenResolverFunc func() (string, error)

// ResolveToken calls f.
func (f TokenResolverFunc) ResolveToken() (string, error) {
	return f()
}

// EnvToken reads the token from the named environment variable at call time, so a missing
// token only fails the first search rather than process start.
type EnvToken string

// ResolveToken implements TokenResolver.
func (e EnvToken) ResolveToken() (string, error) {
	name := string(e)
	if name == "" {
		name = DefaultTokenEnv
	}
	return StaticToken(os.Getenv(name)).resolve(name)
}

// StaticToken is a fixed token value, mostly useful for tests and embedding.
type StaticToken string

// ResolveToken implements TokenResolver.
func (s StaticToken) ResolveToken() (string, error) {
	return s.resolve("token")
}

func (s StaticToken) resolve(source string) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", newError(KindConfiguration,
			"%s is not set. Please set it before using search_slack", source)
	}
	return token, nil
}
