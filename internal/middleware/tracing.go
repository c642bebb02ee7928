package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware continues the caller's W3C trace and wraps the handler
// chain in one server span named after the matched route.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "leaderboards"
	}
	tracer := otel.Tracer(serviceName + "/http")
	propagator := otel.GetTextMapPropagator

	return func(c *gin.Context) {
		req := c.Request
		ctx := propagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, req.Method+" "+req.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.target", req.URL.Path),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()
		c.Request = req.WithContext(ctx)

		c.Next()

		if route := c.FullPath(); route != "" {
			span.SetName(req.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("http.request_id", c.GetString(requestIDKey)),
		)
		if p, ok := GetPrincipal(c); ok {
			span.SetAttributes(
				attribute.String("enduser.id", p.UserID),
				attribute.String("enduser.role", string(p.Roles.Primary())),
			)
		}

		switch {
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			span.AddEvent("auth.denied", trace.WithAttributes(attribute.Int("http.status_code", status)))
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
