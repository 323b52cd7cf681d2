package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get(CorrelationHeader))
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(CorrelationHeader), 36)
}

func TestLoggerWithCorrelationTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := LoggerWithCorrelation(ContextWithCorrelation(context.Background(), "req-9"), base)
	logger.Info().Msg("recalculated")
	require.Contains(t, buf.String(), `"correlation_id":"req-9"`)

	buf.Reset()
	plain := LoggerWithCorrelation(context.Background(), base)
	plain.Info().Msg("plain")
	require.NotContains(t, buf.String(), "correlation_id")
}

func TestRateLimitRejectsAfterBudget(t *testing.T) {
	app := fiber.New()
	app.Post("/recalculate", RateLimit("recalc", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/recalculate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/recalculate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestCorrelationIDReplacesUnusableHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, strings.Repeat("a", 65))
	req.Header.Set("X-Request-ID", "req-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-7", resp.Header.Get(CorrelationHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "has space")
	resp, err = app.Test(req)
	require.NoError(t, err)
	generated := resp.Header.Get(CorrelationHeader)
	require.NotEqual(t, "has space", generated)
	require.Len(t, generated, 36)
}
