package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/config"
	"github.com/cam3ron2/org-dashboard/internal/dashboard"
	"github.com/cam3ron2/org-dashboard/internal/exporter"
	"github.com/cam3ron2/org-dashboard/internal/health"
	"github.com/cam3ron2/org-dashboard/internal/store"
	"go.uber.org/zap"
)

const metricsSnapshotInterval = 15 * time.Second

// Runtime is the application runtime orchestrator.
type Runtime struct {
	cfg       *config.Config
	cache     store.Cache
	service   *dashboard.Service
	metrics   *dashboard.Metrics
	rateLimit exporter.RateLimitReader
	evaluator *health.StatusEvaluator
	logger    *zap.Logger

	mu                  sync.RWMutex
	cacheHealthy        bool
	refreshFailureCount int
	cancel              context.CancelFunc
	done                chan struct{}

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime creates a runtime around source. The cache backend is chosen from cfg.
func NewRuntime(cfg *config.Config, source dashboard.Source, logger ...*zap.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	baseLogger := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		baseLogger = logger[0]
	}

	loc, err := cfg.Window.Location()
	if err != nil {
		return nil, err
	}

	cache := newRuntimeCache(cfg, baseLogger)
	metrics := dashboard.NewMetrics()
	runtime := &Runtime{
		cfg:          cfg,
		cache:        cache,
		metrics:      metrics,
		evaluator:    health.NewStatusEvaluator(),
		logger:       baseLogger,
		cacheHealthy: true,
		Now:          time.Now,
	}

	service, err := dashboard.NewService(source, cache, dashboard.Config{
		Org:           cfg.GitHub.Org,
		WebBaseURL:    cfg.GitHub.WebBaseURL,
		MaxAge:        cfg.Cache.MaxAge,
		MemoTTL:       cfg.Cache.MemoTTL,
		Retention:     cfg.Cache.Retention,
		CacheDisabled: cfg.Cache.Disabled,
		Location:      loc,
		Now:           func() time.Time { return runtime.Now() },
	}, baseLogger.Named("dashboard"), metrics)
	if err != nil {
		return nil, fmt.Errorf("create dashboard service: %w", err)
	}
	runtime.service = service
	if reader, ok := source.(exporter.RateLimitReader); ok {
		runtime.rateLimit = reader
	}
	return runtime, nil
}

// Service exposes the dashboard service.
func (r *Runtime) Service() *dashboard.Service {
	return r.service
}

// Handler returns the combined HTTP handler.
func (r *Runtime) Handler() http.Handler {
	snapshot := exporter.NewCachedSnapshotReader(&exporter.AggregateSnapshot{
		Org:       r.cfg.GitHub.Org,
		Source:    r.service,
		RateLimit: r.rateLimit,
	}, exporter.CacheConfig{RefreshInterval: metricsSnapshotInterval, Now: r.Now})

	metricsHandler := exporter.NewOpenMetricsHandler(snapshot, r.metrics.Collectors()...)
	healthHandler := health.NewHandler(r)
	return NewHTTPHandler(NewAPIHandler(r.service, r.logger.Named("api")), metricsHandler, healthHandler, r.logger)
}

// Start runs the refresh loop until ctx is cancelled or Stop is called.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.logger.Info(
		"starting refresh loop",
		zap.String("org", r.cfg.GitHub.Org),
		zap.Duration("interval", r.refreshInterval()),
		zap.String("cache_backend", fmt.Sprintf("%T", r.cache)),
	)
	go func() {
		defer close(done)
		r.runRefreshLoop(loopCtx)
	}()
}

// Stop stops the refresh loop and waits for the in-progress cycle to return.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("stopped refresh loop")
}

// Close stops the loop and releases the cache backend.
func (r *Runtime) Close() error {
	r.Stop()
	if closer, ok := r.cache.(cacheCloser); ok {
		return closer.Close()
	}
	return nil
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(_ context.Context) health.Status {
	_, hasAggregate := r.service.Latest()
	refresh := r.service.LastRefresh()

	r.mu.RLock()
	input := health.Input{
		CacheHealthy:       r.cacheHealthy,
		AggregateAvailable: hasAggregate,
		GitHubClientUsable: refresh.Error == "",
		RefreshHealthy:     !refresh.Failed(),
		FailedCollections:  refresh.FailedCollections,
	}
	r.mu.RUnlock()
	return r.evaluator.Evaluate(input)
}

// RunRefreshCycle executes one refresh cycle.
func (r *Runtime) RunRefreshCycle(ctx context.Context) error {
	cycleStart := time.Now()
	cacheHealthy := r.probeCache(ctx)

	agg, status, err := r.service.RefreshWithStatus(ctx)

	r.mu.Lock()
	r.cacheHealthy = cacheHealthy
	if err != nil || status.Failed() {
		r.refreshFailureCount++
	} else {
		r.refreshFailureCount = 0
	}
	failureStreak := r.refreshFailureCount
	r.mu.Unlock()

	if memory, ok := r.cache.(*store.MemoryCache); ok {
		memory.GC(r.Now())
	}

	fields := []zap.Field{
		zap.String("run_id", status.RunID),
		zap.Bool("cache_healthy", cacheHealthy),
		zap.Strings("failed_collections", status.FailedCollections),
		zap.Int("failure_streak", failureStreak),
		zap.Duration("duration", time.Since(cycleStart)),
	}
	if agg != nil {
		fields = append(fields,
			zap.Int("contributors", agg.UniqueContributors),
			zap.Int("repositories", len(agg.PerRepository)),
		)
	}
	r.logger.Info("refresh cycle completed", fields...)
	return err
}

func (r *Runtime) runRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval())
	defer ticker.Stop()

	if err := r.RunRefreshCycle(ctx); err != nil {
		r.logger.Warn("refresh cycle finished with errors", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("refresh loop stopped")
			return
		case <-ticker.C:
			if err := r.RunRefreshCycle(ctx); err != nil {
				r.logger.Warn("refresh cycle finished with errors", zap.Error(err))
			}
		}
	}
}

func (r *Runtime) probeCache(ctx context.Context) bool {
	pinger, ok := r.cache.(cachePinger)
	if !ok {
		return true
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		r.logger.Warn("cache ping failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Runtime) refreshInterval() time.Duration {
	if r.cfg.Refresh.Interval > 0 {
		return r.cfg.Refresh.Interval
	}
	return 15 * time.Minute
}
