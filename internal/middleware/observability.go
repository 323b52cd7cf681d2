package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-lms-api/internal/observability"
)

var httpTracer = otel.Tracer("github.com/noah-isme/gema-lms-api/internal/middleware")

// Observability wraps /api requests in a server span, records request metrics and
// writes one structured log line per request. Websocket streams are skipped.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if !strings.HasPrefix(path, "/api/") || strings.HasSuffix(path, "/ws") {
			return c.Next()
		}

		method := c.Method()
		ctx, span := httpTracer.Start(c.UserContext(), method+" "+path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("correlation_id", GetCorrelationID(c)),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		// Route templates are only known after routing.
		route := routeTemplate(c)
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		span.SetName(method + " " + route)
		span.SetAttributes(attribute.String("http.route", route), attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, statusLabel)
		}

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Bool("slow", elapsed > slowRequestThreshold).
			Msg("request completed")

		return err
	}
}

const slowRequestThreshold = 500 * time.Millisecond

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}
