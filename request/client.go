// Package request sends provider API calls, attaching credentials from the
// authentication context cache and retrying once when they turn out stale.
package request

import (
	gocontext "context"

	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/auth"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/metrics"
	"github.com/travis-ci/cloudadapter/wire"
	"go.opencensus.io/trace"
)

// maxAuthRetries is how many times a call is re-issued after an auth fault.
const maxAuthRetries = 1

// Client resolves endpoints and credentials for a scope and executes calls,
// invalidating the scope's context and retrying once on an auth fault.
type Client struct {
	Resolver auth.Resolver
	Scope    auth.Scope
	Executor *Executor
}

// AuthContext returns the current authentication context of the scope.
func (c *Client) AuthContext(ctx gocontext.Context) (*auth.Context, error) {
	return c.Resolver.Resolve(ctx, c.Scope)
}

// Execute runs call. Only auth faults are retried, and only once; every
// other fault is returned untouched.
func (c *Client) Execute(ctx gocontext.Context, call *Call) (*wire.Payload, error) {
	ctx = context.WithRequestID(ctx)

	ctx, span := trace.StartSpan(ctx, "Client.Execute")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("service", call.Service),
		trace.StringAttribute("method", call.Method),
	)

	logger := context.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"self":    "request/client",
		"service": call.Service,
		"scope":   c.Scope.String(),
	})

	for attempt := 0; ; attempt++ {
		actx, err := c.Resolver.Resolve(ctx, c.Scope)
		if err != nil {
			return nil, err
		}

		endpoint, ok := actx.Endpoint(call.Service)
		if !ok {
			return nil, adaptererrors.NewConfigurationFault("no endpoint for service %q in region %q", call.Service, c.Scope.Region)
		}

		u, err := call.URL(endpoint)
		if err != nil {
			return nil, err
		}

		payload, err := c.Executor.Execute(ctx, actx, call, u)
		if err == nil {
			return payload, nil
		}

		if !adaptererrors.IsAuth(err) || attempt >= maxAuthRetries {
			return nil, err
		}

		logger.WithFields(logrus.Fields{
			"err":     err,
			"attempt": attempt + 1,
		}).Warn("auth fault, invalidating authentication context and retrying")
		metrics.Mark("cloudadapter.auth.retry")

		c.Resolver.Invalidate(ctx, c.Scope)
	}
}
