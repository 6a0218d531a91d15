// Package ratelimit implements a rate limiter to avoid calling provider APIs
// too often.
package ratelimit

import (
	"fmt"
	"time"

	gocontext "context"

	"github.com/cenk/backoff"
	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/metrics"
	"go.opencensus.io/trace"
)

const (
	redisRateLimiterPoolMaxActive   = 1
	redisRateLimiterPoolMaxIdle     = 1
	redisRateLimiterPoolIdleTimeout = 3 * time.Minute
)

var errRateLimited = errors.New("rate limited")

// RateLimiter checks if a call can be let through and returns true if it can.
//
// The name should be the same for all calls that should be affected by the
// same rate limit. The maxCalls and per arguments must be the same for all
// calls that use the same name, otherwise the behaviour is undefined.
//
// The rate limiter lets through maxCalls calls in a window of time specified
// by the "per" argument. The window is not sliding, so if you say 10 calls
// per minute and 10 calls happen in the first second, no further calls will
// be let through for another 59 seconds.
type RateLimiter interface {
	RateLimit(ctx gocontext.Context, name string, maxCalls uint64, per time.Duration) (bool, error)
}

type redisRateLimiter struct {
	pool   *redis.Pool
	prefix string
}

type nullRateLimiter struct{}

// NewRateLimiter creates a RateLimiter that's backed by Redis, so every
// adapter process talking to the same cloud account shares one budget. The
// prefix keeps separate accounts apart on the same Redis server.
func NewRateLimiter(redisURL string, prefix string) RateLimiter {
	return &redisRateLimiter{
		pool: &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.DialURL(redisURL)
			},
			TestOnBorrow: func(c redis.Conn, _ time.Time) error {
				_, err := c.Do("PING")
				return err
			},
			MaxIdle:     redisRateLimiterPoolMaxIdle,
			MaxActive:   redisRateLimiterPoolMaxActive,
			IdleTimeout: redisRateLimiterPoolIdleTimeout,
			Wait:        true,
		},
		prefix: prefix,
	}
}

// NewNullRateLimiter creates a valid RateLimiter that always lets all requests
// through immediately.
func NewNullRateLimiter() RateLimiter {
	return nullRateLimiter{}
}

func (rl *redisRateLimiter) RateLimit(ctx gocontext.Context, name string, maxCalls uint64, per time.Duration) (bool, error) {
	if trace.FromContext(ctx) != nil {
		var span *trace.Span
		ctx, span = trace.StartSpan(ctx, "Redis.RateLimit")
		defer span.End()
	}

	poolCheckoutStart := time.Now()

	conn, err := rl.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	context.TimeSince(ctx, "rate_limit_redis_pool_wait", poolCheckoutStart)

	perSeconds := int64(per.Seconds())
	if perSeconds < 1 {
		perSeconds = 1
	}

	now := time.Now().Unix()
	key := fmt.Sprintf("%s:%s:%d", rl.prefix, name, now-(now%perSeconds))

	cur, err := redis.Int64(conn.Do("GET", key))
	if err != nil && err != redis.ErrNil {
		return false, err
	}

	if err != redis.ErrNil && uint64(cur) >= maxCalls {
		return false, nil
	}

	_, err = conn.Do("WATCH", key)
	if err != nil {
		return false, err
	}

	connSend := func(commandName string, args ...interface{}) {
		if err != nil && err != redis.ErrNil {
			return
		}
		err = conn.Send(commandName, args...)
	}
	connSend("MULTI")
	connSend("INCR", key)
	connSend("EXPIRE", key, perSeconds)
	if err != nil {
		return false, err
	}

	reply, err := conn.Do("EXEC")
	if err != nil {
		return false, err
	}
	if reply == nil {
		// another client touched the key between WATCH and EXEC
		return false, nil
	}

	return true, nil
}

func (rl nullRateLimiter) RateLimit(ctx gocontext.Context, name string, maxCalls uint64, per time.Duration) (bool, error) {
	return true, nil
}

// Wait blocks until rl lets a call named name through, backing off
// exponentially while the window is exhausted. It gives up when ctx is done
// or the limiter itself fails.
func Wait(ctx gocontext.Context, rl RateLimiter, name string, maxCalls uint64, per time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = per
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		ok, err := rl.RateLimit(ctx, name, maxCalls, per)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			metrics.Markf("cloudadapter.ratelimit.%s.backoff", name)
			return errRateLimited
		}
		return nil
	}, backoff.WithContext(b, ctx))
}
