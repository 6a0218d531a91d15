package context

import (
	"testing"

	gocontext "context"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(gocontext.TODO())
	id, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.NotEmpty(t, id)

	again, _ := RequestIDFromContext(WithRequestID(ctx))
	assert.Equal(t, id, again)
}

func TestLoggerFromContext(t *testing.T) {
	ctx := FromRequestID(gocontext.TODO(), "req-1")
	ctx = FromRegion(ctx, "nova")
	ctx = FromAccount(ctx, "tenant-7")
	ctx = FromOperation(ctx, "launch")
	ctx = FromComponent(ctx, "http_api")

	entry := LoggerFromContext(ctx)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "nova", entry.Data["region"])
	assert.Equal(t, "tenant-7", entry.Data["account"])
	assert.Equal(t, "launch", entry.Data["operation"])
	assert.Equal(t, "http_api", entry.Data["component"])
	assert.Contains(t, entry.Data, "pid")

	bare := LoggerFromContext(gocontext.TODO())
	assert.NotContains(t, bare.Data, "region")
}
