package auth

import (
	"fmt"
	"sync"
	"time"

	gocontext "context"

	"github.com/coocood/freecache"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	freecache_store "github.com/eko/gocache/store/freecache/v4"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/metrics"
)

const (
	// DefaultTTL bounds how long an acquired context is reused.
	DefaultTTL = 24 * time.Hour

	// freecache caps entries at 1/1024 of its size, PKI tokens run to several KB
	cacheSizeBytes = 16 * 1024 * 1024
	cacheNamespace = "authenticationContext"
)

// Cache is a process-wide, TTL-bounded store of authentication contexts
// keyed by identity source and scope. Reads run concurrently; acquisition and
// invalidation are exclusive, so once Invalidate returns no reader can
// observe the invalidated context.
type Cache struct {
	mu sync.RWMutex
	ms *marshaler.Marshaler

	now func() time.Time
}

var (
	defaultCache     *Cache
	defaultCacheOnce sync.Once
)

// DefaultCache is the cache every session in the process shares.
func DefaultCache() *Cache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewCache()
	})
	return defaultCache
}

// NewCache builds an empty Cache. Most callers want DefaultCache.
func NewCache() *Cache {
	fcs := freecache_store.NewFreecache(freecache.NewCache(cacheSizeBytes), store.WithExpiration(DefaultTTL))

	return &Cache{
		ms:  marshaler.New(cache.New[any](fcs)),
		now: time.Now,
	}
}

// Bind returns a Resolver over c that acquires missing contexts through
// acquirer. source names the identity service (its endpoint) so equal scopes
// on different clouds don't collide. A zero ttl means DefaultTTL.
func (c *Cache) Bind(source string, acquirer Acquirer, ttl time.Duration) Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &boundCache{c: c, source: source, acquirer: acquirer, ttl: ttl}
}

func (c *Cache) key(source string, scope Scope) string {
	return fmt.Sprintf("%s/%s/%s/%s", cacheNamespace, source, scope.Region, scope.Account)
}

func (c *Cache) lookup(ctx gocontext.Context, key string) (*Context, bool) {
	actx := &Context{}
	if _, err := c.ms.Get(ctx, key, actx); err != nil {
		return nil, false
	}
	if actx.Token == "" || actx.Expired(c.now()) {
		return nil, false
	}
	return actx, true
}

func (c *Cache) invalidate(ctx gocontext.Context, key string, scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ms.Delete(ctx, key); err != nil {
		context.LoggerFromContext(ctx).WithFields(logrus.Fields{
			"self":  "auth/cache",
			"scope": scope.String(),
			"err":   err,
		}).Debug("nothing to invalidate")
	}

	metrics.Mark("cloudadapter.auth.invalidate")
}

type boundCache struct {
	c        *Cache
	source   string
	acquirer Acquirer
	ttl      time.Duration
}

// Resolve returns the cached context for scope, acquiring one if the cache is
// empty or the cached one has expired.
func (b *boundCache) Resolve(ctx gocontext.Context, scope Scope) (*Context, error) {
	c := b.c
	key := c.key(b.source, scope)

	c.mu.RLock()
	actx, ok := c.lookup(ctx, key)
	c.mu.RUnlock()
	if ok {
		return actx, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if actx, ok := c.lookup(ctx, key); ok {
		return actx, nil
	}

	logger := context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":  "auth/cache",
		"scope": scope.String(),
	})

	startAcquire := time.Now()
	actx, err := b.acquirer.Acquire(ctx, scope)
	if err != nil {
		return nil, err
	}
	context.TimeSince(ctx, "auth.acquire", startAcquire)

	now := c.now()
	if actx.Expiry.IsZero() || actx.Expiry.After(now.Add(b.ttl)) {
		actx.Expiry = now.Add(b.ttl)
	}

	err = c.ms.Set(ctx, key, actx, store.WithExpiration(actx.Expiry.Sub(now)))
	if err != nil {
		// the context is still good for this call, we just can't reuse it
		logger.WithField("err", err).Warn("couldn't store authentication context")
	}

	logger.WithField("expiry", actx.Expiry).Debug("acquired authentication context")

	return actx, nil
}

// Invalidate drops the cached context for scope. Every caller sharing the
// scope re-authenticates on its next request.
func (b *boundCache) Invalidate(ctx gocontext.Context, scope Scope) {
	b.c.invalidate(ctx, b.c.key(b.source, scope), scope)
}
