package telemetry

import (
	"context"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	traceModeOff      = "off"
	traceModeErrors   = "errors"
	traceModeSampled  = "sampled"
	traceModeDetailed = "detailed"

	defaultServiceName = "org-dashboard"
	serviceNamespace   = "github-reporting"

	// OrgAttribute tags every span resource with the organization being reported on.
	OrgAttribute = attribute.Key("dashboard.org")
)

var (
	globalTraceMode atomic.Value

	knownTraceModes = map[string]struct{}{
		traceModeOff:      {},
		traceModeErrors:   {},
		traceModeSampled:  {},
		traceModeDetailed: {},
	}
)

// Config configures tracing for one dashboard process.
type Config struct {
	Enabled          bool
	ServiceName      string
	Org              string
	TraceMode        string
	TraceSampleRatio float64
}

// Runtime holds the installed tracer provider.
type Runtime struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(ctx context.Context) error
}

// Setup installs the global tracer provider. A disabled config installs one
// that never samples.
func Setup(cfg Config) (Runtime, error) {
	mode := traceModeOff
	if cfg.Enabled {
		mode = normalizeTraceMode(cfg.TraceMode)
	}
	setTraceMode(mode)

	res, err := newResource(cfg)
	if err != nil {
		return Runtime{}, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(samplerForMode(mode, cfg.TraceSampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return Runtime{
		TracerProvider: provider,
		Shutdown:       provider.Shutdown,
	}, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceNamespaceKey.String(serviceNamespace),
	}
	if org := strings.TrimSpace(cfg.Org); org != "" {
		attrs = append(attrs, OrgAttribute.String(org))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// errors mode samples at least 1% of root traces.
func samplerForMode(mode string, ratio float64) sdktrace.Sampler {
	ratio = clampRatio(ratio)
	switch normalizeTraceMode(mode) {
	case traceModeOff:
		return sdktrace.NeverSample()
	case traceModeDetailed:
		return sdktrace.AlwaysSample()
	case traceModeErrors:
		ratio = max(ratio, 0.01)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// TraceMode reports the active trace mode.
func TraceMode() string {
	if mode, _ := globalTraceMode.Load().(string); mode != "" {
		return mode
	}
	return traceModeOff
}

// ShouldTraceDependencies reports whether refresh and GitHub calls get their own spans.
func ShouldTraceDependencies() bool {
	return TraceMode() == traceModeDetailed
}

func setTraceMode(mode string) {
	globalTraceMode.Store(normalizeTraceMode(mode))
}

// Unknown modes fall back to sampled.
func normalizeTraceMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if _, ok := knownTraceModes[mode]; ok {
		return mode
	}
	return traceModeSampled
}

func clampRatio(ratio float64) float64 {
	return min(max(ratio, 0), 1)
}
