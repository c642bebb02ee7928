package tracing

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const (
	defaultServiceName = "leaderboards"
	defaultEndpoint    = "localhost:4317"
)

// Config mirrors config.TracingConfig so this package stays free of the
// application config.
type Config struct {
	Enabled     bool
	ServiceName string
	Environment string

	OTLPEndpoint string
	OTLPInsecure bool

	SampleRatio float64
}

// settings is Config after env fallbacks and defaults.
type settings struct {
	serviceName string
	endpoint    string
	insecure    bool
	sampleRatio float64
}

// resolve fills blanks from the standard OTEL_* variables. A scheme on the
// endpoint decides transport security unless OTEL_EXPORTER_OTLP_INSECURE is set.
func resolve(cfg Config, getenv func(string) string) settings {
	s := settings{
		serviceName: firstNonEmpty(cfg.ServiceName, getenv("OTEL_SERVICE_NAME"), defaultServiceName),
		insecure:    cfg.OTLPInsecure,
		sampleRatio: cfg.SampleRatio,
	}

	raw := firstNonEmpty(cfg.OTLPEndpoint, getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), defaultEndpoint)
	switch {
	case strings.HasPrefix(raw, "http://"):
		s.insecure = true
	case strings.HasPrefix(raw, "https://"):
		s.insecure = false
	}
	s.endpoint = sanitizeEndpoint(raw)

	if v := strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		s.insecure = parseBool(v)
	}
	if s.sampleRatio <= 0 || s.sampleRatio > 1 {
		s.sampleRatio = 1
	}
	return s
}

// Setup installs the global tracer provider and W3C propagators. The returned
// func flushes and stops the exporter; it is a no-op when tracing is off.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	s := resolve(cfg, os.Getenv)

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Warn("otlp exporter unavailable, tracing disabled", "endpoint", s.endpoint, "err", err)
		return noop, nil
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(s.serviceName))}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(env)))
	}
	res, err := resource.New(ctx, append(attrs, resource.WithSchemaURL(semconv.SchemaURL))...)
	if err != nil {
		logger.Warn("otel resource incomplete", "err", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", "endpoint", s.endpoint, "service", s.serviceName, "ratio", s.sampleRatio)
	return tp.Shutdown, nil
}

// sanitizeEndpoint strips a URL down to the host:port the gRPC exporter wants.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(raw, "/")
}

func parseBool(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
