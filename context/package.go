// Package context carries request-scoped values (request id, provider scope,
// operation) and builds loggers that include them.
package context

import (
	"os"
	"time"

	gocontext "context"

	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/metrics"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	regionKey
	accountKey
	operationKey
	componentKey
)

func FromRequestID(ctx gocontext.Context, requestID string) gocontext.Context {
	return gocontext.WithValue(ctx, requestIDKey, requestID)
}

// WithRequestID attaches a fresh request id unless one is already present.
func WithRequestID(ctx gocontext.Context) gocontext.Context {
	if _, ok := RequestIDFromContext(ctx); ok {
		return ctx
	}
	return FromRequestID(ctx, uuid.NewRandom().String())
}

func FromRegion(ctx gocontext.Context, region string) gocontext.Context {
	return gocontext.WithValue(ctx, regionKey, region)
}

func FromAccount(ctx gocontext.Context, account string) gocontext.Context {
	return gocontext.WithValue(ctx, accountKey, account)
}

func FromOperation(ctx gocontext.Context, operation string) gocontext.Context {
	return gocontext.WithValue(ctx, operationKey, operation)
}

func FromComponent(ctx gocontext.Context, component string) gocontext.Context {
	return gocontext.WithValue(ctx, componentKey, component)
}

func RequestIDFromContext(ctx gocontext.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

func RegionFromContext(ctx gocontext.Context) (string, bool) {
	region, ok := ctx.Value(regionKey).(string)
	return region, ok
}

func AccountFromContext(ctx gocontext.Context) (string, bool) {
	account, ok := ctx.Value(accountKey).(string)
	return account, ok
}

func OperationFromContext(ctx gocontext.Context) (string, bool) {
	operation, ok := ctx.Value(operationKey).(string)
	return operation, ok
}

func ComponentFromContext(ctx gocontext.Context) (string, bool) {
	component, ok := ctx.Value(componentKey).(string)
	return component, ok
}

// LoggerFromContext returns a logrus entry with every known context value set
// as a field.
func LoggerFromContext(ctx gocontext.Context) *logrus.Entry {
	entry := logrus.WithField("pid", os.Getpid())

	if requestID, ok := RequestIDFromContext(ctx); ok {
		entry = entry.WithField("request_id", requestID)
	}

	if region, ok := RegionFromContext(ctx); ok {
		entry = entry.WithField("region", region)
	}

	if account, ok := AccountFromContext(ctx); ok {
		entry = entry.WithField("account", account)
	}

	if operation, ok := OperationFromContext(ctx); ok {
		entry = entry.WithField("operation", operation)
	}

	if component, ok := ComponentFromContext(ctx); ok {
		entry = entry.WithField("component", component)
	}

	return entry
}

// TimeSince records the duration since start in a timer named after name and
// logs it at debug level.
func TimeSince(ctx gocontext.Context, name string, start time.Time) {
	elapsed := time.Since(start)
	metrics.TimeSince("cloudadapter."+name, start)
	LoggerFromContext(ctx).WithFields(logrus.Fields{
		"name":    name,
		"elapsed": elapsed,
	}).Debug("timed")
}
