package uber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DeliveryScope is the OAuth2 scope covering all delivery operations.
const DeliveryScope = "eats.deliveries"

const tokenExchangeTimeout = 30 * time.Second

// AuthError carries the provider response for a rejected token exchange.
// Callers must not retry silently; the error propagates to the top of the
// operation that needed the token.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to get bearer token: %s", e.Body)
}

// TokenCache is the set-with-TTL cache the token provider stores bearer
// tokens in. Entries self-expire; there is no invalidation path.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisTokenCache implements TokenCache on a Redis connection.
type RedisTokenCache struct {
	rdb *redis.Client
}

func NewRedisTokenCache(rdb *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisTokenCache) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// TokenProvider obtains client-credentials bearer tokens and caches them per
// customer id with a TTL equal to the provider-reported expiry.
type TokenProvider struct {
	oauth      clientcredentials.Config
	cache      TokenCache
	httpClient *http.Client
	log        *zap.Logger
}

// NewTokenProvider builds a provider for the given OAuth endpoint and client
// credentials. The exchange itself has a 30s timeout.
func NewTokenProvider(oauthURL, clientID, clientSecret string, cache TokenCache, log *zap.Logger) *TokenProvider {
	return &TokenProvider{
		oauth: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     strings.TrimRight(oauthURL, "/") + "/oauth/v2/token",
			Scopes:       []string{DeliveryScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		cache:      cache,
		httpClient: &http.Client{Timeout: tokenExchangeTimeout},
		log:        log,
	}
}

// BearerToken returns a cached non-expired token for the customer, or
// performs a fresh client-credentials exchange and caches the result with
// TTL = expires_in. A read hit is safe to use immediately because the cache's
// own TTL eviction guarantees no expired entry is ever returned.
func (p *TokenProvider) BearerToken(ctx context.Context, customerID string) (string, error) {
	key := tokenCacheKey(customerID)
	if cached, err := p.cache.Get(ctx, key); err != nil {
		p.log.Warn("token cache read failed", zap.Error(err))
	} else if cached != "" {
		return cached, nil
	}

	// The oauth2 package picks its HTTP client out of the context.
	exchCtx, cancel := context.WithTimeout(
		context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), tokenExchangeTimeout)
	defer cancel()

	token, err := p.oauth.Token(exchCtx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &AuthError{Body: string(retrieveErr.Body)}
		}
		return "", fmt.Errorf("uber.TokenProvider: token exchange: %w", err)
	}

	if ttl := time.Until(token.Expiry); ttl > 0 {
		if err := p.cache.SetTTL(ctx, key, token.AccessToken, ttl); err != nil {
			p.log.Warn("token cache write failed", zap.Error(err))
		}
	}
	return token.AccessToken, nil
}

func tokenCacheKey(customerID string) string {
	return "uberdirect_bearer_token_" + customerID
}
