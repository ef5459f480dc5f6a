package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/config"
)

const defaultKeyTTL = time.Hour

// KeyCache supplies the JWT verification key. When a key URL is configured
// the key is fetched remotely and cached with an explicit TTL; otherwise the
// static secret from the configuration is used. The clock is injectable so
// tests can simulate expiry deterministically.
type KeyCache struct {
	mu         sync.Mutex
	secret     []byte
	keyURL     string
	ttl        time.Duration
	now        func() time.Time
	httpClient *http.Client

	cached []byte
	expiry time.Time
}

// NewKeyCache creates a KeyCache from the auth configuration.
func NewKeyCache(cfg config.AuthConfig) *KeyCache {
	ttl := defaultKeyTTL
	if cfg.KeyTTL > 0 {
		ttl = time.Duration(cfg.KeyTTL) * time.Second
	}
	return &KeyCache{
		secret:     []byte(cfg.JwtSecret),
		keyURL:     cfg.KeyURL,
		ttl:        ttl,
		now:        time.Now,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Key returns the current verification key, refreshing the remote copy when
// the cached one has expired.
func (k *KeyCache) Key(ctx context.Context) ([]byte, error) {
	if k.keyURL == "" {
		if len(k.secret) == 0 {
			return nil, fmt.Errorf("%w: no verification key configured", apperr.ErrUnauthorized)
		}
		return k.secret, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cached != nil && k.now().Before(k.expiry) {
		return k.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.keyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build key request: %w", err)
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch verification key: %v", apperr.ErrUpstreamService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: failed to fetch verification key: %d", apperr.ErrUpstreamService, resp.StatusCode)
	}

	key, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read verification key: %v", apperr.ErrUpstreamService, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: verification key endpoint returned an empty body", apperr.ErrUpstreamService)
	}

	k.cached = key
	k.expiry = k.now().Add(k.ttl)
	return k.cached, nil
}
