package supplier

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/wander/internal/telemetry"
)

// DefaultTokenSafetyMargin is how long before expiry a cached token stops
// being handed out.
const DefaultTokenSafetyMargin = 60 * time.Second

// TokenExchanger performs one client-credentials grant.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context) (accessToken string, ttl time.Duration, err error)
}

// TokenCache holds one supplier bearer token per process.
//
// Concurrent callers that miss the cache each perform their own exchange and
// the last writer wins. The supplier's token endpoint is idempotent, so this
// costs a redundant request, never correctness.
type TokenCache struct {
	exchanger TokenExchanger
	margin    time.Duration
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenCacheOption configures a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// WithSafetyMargin overrides DefaultTokenSafetyMargin.
func WithSafetyMargin(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.margin = d }
}

// NewTokenCache creates an empty cache backed by exchanger.
func NewTokenCache(exchanger TokenExchanger, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		exchanger: exchanger,
		margin:    DefaultTokenSafetyMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token while now < expiresAt - margin, otherwise
// exchanges credentials for a fresh one. Exchange failures are returned
// as-is and leave the cache untouched.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	now := c.now()

	c.mu.Lock()
	if c.token != "" && now.Before(c.expiresAt.Add(-c.margin)) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	token, ttl, err := c.exchanger.ExchangeToken(ctx)
	if err != nil {
		observeTokenExchange("error")
		return "", err
	}
	observeTokenExchange("success")

	c.mu.Lock()
	c.token = token
	c.expiresAt = now.Add(ttl)
	c.mu.Unlock()

	return token, nil
}

// Invalidate drops the cached token so the next Token call exchanges again.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func observeTokenExchange(outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.TokenExchanges.WithLabelValues(outcome).Inc()
	}
}
