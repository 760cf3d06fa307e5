package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

func TestNewLogger_LevelFallback(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, config.AppConfig{Name: "marketplace-api", Env: "production"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	debug, err := NewLogger(config.LoggerConfig{Level: "DEBUG"}, config.AppConfig{Env: "local"})
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	app.Get("/denied", func(c *fiber.Ctx) error { return errorutil.NewUnauthorized("Authentication tokens required") })

	for _, path := range []string{"/ok", "/denied", "/ok"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(http.StatusUnauthorized), entries[1].ContextMap()["status"])
	assert.Equal(t, "/denied", entries[1].ContextMap()["path"])

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/ok|GET|204"])
	assert.Equal(t, int64(1), snap.Requests["/denied|GET|401"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	assert.Empty(t, m.Snapshot().Requests)
}
