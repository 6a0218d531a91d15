package request

import (
	"net/http"
	"time"

	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/metrics"
	"github.com/travis-ci/cloudadapter/ratelimit"
	"github.com/travis-ci/cloudadapter/wire"
)

var (
	defaultRateLimitMaxCalls uint64 = 10
	defaultRateLimitDuration        = time.Second
)

// Executor sends a single request with the credentials of an authentication
// context. Non-2xx responses come back as faults.
type Executor struct {
	Sender     Sender
	Authorizer Authorizer

	RateLimiter       ratelimit.RateLimiter
	RateLimitMaxCalls uint64
	RateLimitDuration time.Duration
}

// Execute sends call to url once and decodes the response.
func (e *Executor) Execute(ctx gocontext.Context, actx *auth.Context, call *Call, url string) (*wire.Payload, error) {
	logger := context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":    "request/executor",
		"service": call.Service,
		"method":  call.Method,
	})

	headers := http.Header{}
	for key, values := range call.Headers {
		headers[key] = append([]string(nil), values...)
	}

	body := call.Body
	if call.Form != nil {
		body = []byte(call.Form.Encode())
		headers.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	} else if call.Format == wire.FormatJSON {
		headers.Set("Accept", "application/json")
		if len(body) > 0 {
			headers.Set("Content-Type", "application/json")
		}
	}

	// signatures carry a timestamp, so sign only once the limiter lets us go
	e.waitForRateLimit(ctx, logger, call.Service)

	authorizer := e.Authorizer
	if authorizer == nil {
		authorizer = TokenAuthorizer{}
	}
	if err := authorizer.Authorize(actx, call.Method, url, headers, body); err != nil {
		return nil, err
	}

	startSend := time.Now()
	status, respBody, err := e.Sender.Send(ctx, call.Method, url, headers, body)
	if err != nil {
		metrics.Markf("cloudadapter.api.%s.transport_error", call.Service)
		return nil, err
	}
	context.TimeSince(ctx, "api."+call.Service, startSend)

	logger.WithFields(logrus.Fields{
		"url":    url,
		"status": status,
	}).Debug("sent request")

	if status < 200 || status > 299 {
		metrics.Markf("cloudadapter.api.%s.error.%d", call.Service, status)
		return nil, Classify(call.Format, status, respBody)
	}

	return wire.Decode(call.Format, status, respBody)
}

// waitForRateLimit blocks on the rate limiter. A broken limiter is logged
// and the request goes out anyway.
func (e *Executor) waitForRateLimit(ctx gocontext.Context, logger *logrus.Entry, service string) {
	if e.RateLimiter == nil {
		return
	}

	maxCalls := e.RateLimitMaxCalls
	if maxCalls == 0 {
		maxCalls = defaultRateLimitMaxCalls
	}
	per := e.RateLimitDuration
	if per == 0 {
		per = defaultRateLimitDuration
	}

	startWait := time.Now()
	if err := ratelimit.Wait(ctx, e.RateLimiter, service, maxCalls, per); err != nil {
		logger.WithField("err", err).Warn("rate limiter failed, sending anyway")
		return
	}
	context.TimeSince(ctx, "rate_limit."+service, startWait)
}
