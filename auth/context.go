// Package auth caches authentication contexts per (region, account) and
// acquires new ones from the provider's identity service.
package auth

import (
	"fmt"
	"strings"
	"time"

	gocontext "context"
)

// Scope identifies whose credentials a context belongs to. Contexts are never
// shared across scopes.
type Scope struct {
	Region  string
	Account string
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s", s.Region, s.Account)
}

// Context is an authentication token plus the endpoints it is valid for.
type Context struct {
	Token     string
	TenantID  string
	Endpoints map[string]string
	Expiry    time.Time
}

// Endpoint returns the base URL of a service.
func (c *Context) Endpoint(service string) (string, bool) {
	if c == nil {
		return "", false
	}
	u, ok := c.Endpoints[service]
	return u, ok && strings.TrimSpace(u) != ""
}

// Expired reports whether the context is past its expiry. Contexts without
// an expiry never expire on their own.
func (c *Context) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Acquirer obtains a fresh context from the identity service.
type Acquirer interface {
	Acquire(ctx gocontext.Context, scope Scope) (*Context, error)
}

// Resolver is what the request layer needs from a context cache.
type Resolver interface {
	Resolve(ctx gocontext.Context, scope Scope) (*Context, error)
	Invalidate(ctx gocontext.Context, scope Scope)
}
