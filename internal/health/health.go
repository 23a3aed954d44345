package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Mode indicates high-level health mode.
type Mode string

const (
	// ModeHealthy indicates all dependencies are healthy.
	ModeHealthy Mode = "healthy"
	// ModeDegraded indicates the service is ready but the last refresh did not fully succeed.
	ModeDegraded Mode = "degraded"
	// ModeUnhealthy indicates the service cannot serve aggregates.
	ModeUnhealthy Mode = "unhealthy"
)

// Input represents dependency states used for health evaluation.
type Input struct {
	CacheHealthy       bool
	AggregateAvailable bool
	GitHubClientUsable bool
	RefreshHealthy     bool
	FailedCollections  []string
}

// Status represents evaluated application health.
type Status struct {
	Mode              Mode            `json:"mode"`
	Ready             bool            `json:"ready"`
	Components        map[string]bool `json:"components"`
	FailedCollections []string        `json:"failed_collections,omitempty"`
}

// Provider supplies current health status.
type Provider interface {
	CurrentStatus(ctx context.Context) Status
}

// StatusEvaluator evaluates health and readiness.
type StatusEvaluator struct{}

// NewStatusEvaluator creates a health evaluator.
func NewStatusEvaluator() *StatusEvaluator {
	return &StatusEvaluator{}
}

// Evaluate evaluates readiness and mode from dependency state. The service is
// ready once the cache is usable and an aggregate exists; a failed or partial
// refresh only degrades it.
func (e *StatusEvaluator) Evaluate(input Input) Status {
	components := map[string]bool{
		"cache":         input.CacheHealthy,
		"aggregate":     input.AggregateAvailable,
		"github_client": input.GitHubClientUsable,
		"refresh":       input.RefreshHealthy,
	}

	ready := input.CacheHealthy && input.AggregateAvailable

	mode := ModeHealthy
	if !ready {
		mode = ModeUnhealthy
	} else if !input.RefreshHealthy || !input.GitHubClientUsable {
		mode = ModeDegraded
	}

	return Status{
		Mode:              mode,
		Ready:             ready,
		Components:        components,
		FailedCollections: input.FailedCollections,
	}
}

// NewHandler returns the health HTTP handler with /livez, /readyz, and /healthz endpoints.
func NewHandler(provider Provider) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			return
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status := provider.CurrentStatus(r.Context())
		if status.Ready {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("ready")); err != nil {
				return
			}
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("not ready")); err != nil {
			return
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := provider.CurrentStatus(r.Context())
		payload, err := json.Marshal(status)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			if _, writeErr := w.Write([]byte(`{"mode":"unhealthy","error":"marshal health status"}`)); writeErr != nil {
				return
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:gosec // Health payload is server-generated JSON status.
		if _, err := w.Write(payload); err != nil {
			return
		}
	})

	return mux
}
