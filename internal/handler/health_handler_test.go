package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/router"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "GEMA LMS API",
		AppEnv:  "test",
	}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, cfg.AppName, resp.Header.Get("X-Application"))

	var payload struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, cfg.AppName, payload.Data.Service)
	assert.Equal(t, cfg.AppEnv, payload.Data.Environment)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestProtectedRoutesUseJWTMiddleware(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		LeaderboardHandler: handler.NewLeaderboardHandler(nil, nil, nil, zerolog.Nop()),
		JWTMiddleware: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).SendString("denied")
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v2/leaderboard", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthCheckReportsDegradedDependencies(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		HealthProbes: map[string]handler.HealthProbe{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "degraded", payload.Data.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "unavailable"}, payload.Data.Dependencies)
}
