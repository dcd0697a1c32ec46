package sessionpool

import (
	"context"
	"fmt"
	"os"
)

// TokenProvider supplies the bearer token attached to every session pool
// request. Implementations typically wrap a cloud credential chain; the
// client only ever needs this single token-retrieval operation.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticTokenProvider returns a fixed token. Useful for tests and for
// pre-acquired tokens with external refresh.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider returning token verbatim.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token implements TokenProvider.
func (p *StaticTokenProvider) Token(context.Context) (string, error) { return p.token, nil }

// EnvTokenProvider reads the token from an environment variable on every
// call, so external refresh mechanisms that rewrite the variable are picked
// up without restarting the process.
type EnvTokenProvider struct {
	envVar string
}

// NewEnvTokenProvider creates a provider reading from the named variable.
func NewEnvTokenProvider(envVar string) *EnvTokenProvider {
	return &EnvTokenProvider{envVar: envVar}
}

// Token implements TokenProvider.
func (p *EnvTokenProvider) Token(context.Context) (string, error) {
	v := os.Getenv(p.envVar)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty", p.envVar)
	}
	return v, nil
}
