package tokencache

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"

	"github.com/mikolajkapica/gister/core"
)

// DefaultTTL matches the issuer's token rotation window.
const DefaultTTL = 600 * time.Second

// SessionFetcher performs one session fetch against the authentication
// collaborator and returns the bearer token it issued in the response
// metadata, or "" when the issuer did not attach one.
type SessionFetcher interface {
	FetchSessionToken(ctx context.Context) (string, error)
}

type Config struct {
	Fetcher        SessionFetcher
	TTL            time.Duration
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Clock          func() time.Time
}

// Cache holds the process-wide bearer token shared by all outbound calls.
// Refresh is strictly lazy: it happens only inside GetToken, and concurrent
// callers that observe an expired entry share one in-flight refresh.
type Cache struct {
	fetcher SessionFetcher
	ttl     time.Duration
	logger  core.Logger
	nowFn   func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	value    string
	issuedAt time.Time
}

func New(cfg Config) *Cache {
	_, logger := glog.Resolve("tokencache", cfg.LoggerProvider, cfg.Logger)
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	nowFn := cfg.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Cache{
		fetcher: cfg.Fetcher,
		ttl:     ttl,
		logger:  glog.Ensure(logger),
		nowFn:   nowFn,
	}
}

// GetToken returns the cached bearer token while it is younger than the
// TTL, refreshing it otherwise. A failed refresh yields "" and is never
// propagated: the call proceeds without an Authorization header, and any
// previous entry stays in place for the next refresh to replace.
func (c *Cache) GetToken(ctx context.Context) string {
	if c == nil || c.fetcher == nil {
		return ""
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.RLock()
	value, fresh := c.value, c.freshLocked()
	c.mu.RUnlock()
	if fresh {
		return value
	}

	result, err, _ := c.group.Do("session-token", func() (any, error) {
		// Recheck inside the flight: a caller that queued behind a
		// completed refresh must not trigger another handshake.
		c.mu.RLock()
		value, fresh := c.value, c.freshLocked()
		c.mu.RUnlock()
		if fresh {
			return value, nil
		}

		token, fetchErr := c.fetcher.FetchSessionToken(ctx)
		if fetchErr != nil {
			return "", fetchErr
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.logger.Debug("session fetch returned no token; proceeding without bearer")
			return "", nil
		}

		c.mu.Lock()
		c.value = token
		c.issuedAt = c.nowFn()
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		c.logger.Warn("session token refresh failed; proceeding without bearer", "error", err.Error())
		return ""
	}
	token, _ := result.(string)
	return token
}

// freshLocked requires at least a read lock.
func (c *Cache) freshLocked() bool {
	if strings.TrimSpace(c.value) == "" {
		return false
	}
	return c.nowFn().Sub(c.issuedAt) < c.ttl
}
