package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestClampRatio(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input float64
		want  float64
	}{
		{name: "below_zero", input: -0.25, want: 0},
		{name: "within_bounds", input: 0.42, want: 0.42},
		{name: "above_one", input: 1.25, want: 1},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := clampRatio(tc.input); got != tc.want {
				t.Fatalf("clampRatio(%v) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewResourceOmitsEmptyOrg(t *testing.T) {
	t.Parallel()

	res, err := newResource(Config{ServiceName: "  ", Org: " "})
	if err != nil {
		t.Fatalf("newResource() error = %v", err)
	}
	if _, ok := res.Set().Value(OrgAttribute); ok {
		t.Fatalf("resource carries %s for an empty org", OrgAttribute)
	}
	if name, _ := res.Set().Value("service.name"); name.AsString() != "org-dashboard" {
		t.Fatalf("service.name = %q, want default", name.AsString())
	}
}

func TestNormalizeTraceMode(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"":           traceModeSampled,
		" OFF ":      traceModeOff,
		"errors":     traceModeErrors,
		"Detailed":   traceModeDetailed,
		"everything": traceModeSampled,
	}
	for input, want := range testCases {
		if got := normalizeTraceMode(input); got != want {
			t.Fatalf("normalizeTraceMode(%q) = %q, want %q", input, got, want)
		}
	}
}

// Not parallel: Setup mutates the global trace mode and tracer provider.
func TestSetupTraceModeAndDependencySpans(t *testing.T) {
	runtime, err := Setup(Config{Enabled: true, TraceMode: " Detailed ", Org: "acme"})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	t.Cleanup(func() { _ = runtime.Shutdown(context.Background()) })

	if TraceMode() != traceModeDetailed || !ShouldTraceDependencies() {
		t.Fatalf("TraceMode() = %q, want detailed with dependency spans", TraceMode())
	}

	recorder := tracetest.NewSpanRecorder()
	runtime.TracerProvider.RegisterSpanProcessor(recorder)
	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "dashboard.refresh")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Name() != "dashboard.refresh" {
		t.Fatalf("ended spans = %d, want the refresh span", len(ended))
	}
	resourceAttrs := make(map[string]string)
	for _, kv := range ended[0].Resource().Attributes() {
		resourceAttrs[string(kv.Key)] = kv.Value.AsString()
	}
	wantAttrs := map[string]string{
		"service.name":      "org-dashboard",
		"service.namespace": "github-reporting",
		"dashboard.org":     "acme",
	}
	for key, want := range wantAttrs {
		if got := resourceAttrs[key]; got != want {
			t.Fatalf("resource %s = %q, want %q", key, got, want)
		}
	}

	disabled, err := Setup(Config{Enabled: false, TraceMode: "detailed"})
	if err != nil {
		t.Fatalf("Setup(disabled) error = %v", err)
	}
	t.Cleanup(func() { _ = disabled.Shutdown(context.Background()) })
	if TraceMode() != traceModeOff || ShouldTraceDependencies() {
		t.Fatalf("TraceMode() = %q after disabling, want off", TraceMode())
	}
}
