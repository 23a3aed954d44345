package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/store"
	"github.com/cam3ron2/org-dashboard/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const tracerName = "org-dashboard/internal/dashboard"

// Cache keys, one per upstream collection plus the computed aggregate.
const (
	KeyRepositories = "repositories"
	KeyContributors = "contributors"
	KeyCommits      = "commits"
	KeyPullRequests = "pull_requests"
	KeyIssues       = "issues"
	KeyAggregate    = "aggregate"
)

// flightRefresh keys forced rebuilds apart from aggregate lookups.
const flightRefresh = "refresh"

type refreshRun struct {
	aggregate *activity.OrgAggregate
	status    RefreshStatus
}

var (
	// ErrNotFound is returned when a contributor or repository is not in the aggregate.
	ErrNotFound = errors.New("not found")
	// ErrNoData is returned when no aggregate could be produced or recovered.
	ErrNoData = errors.New("no aggregate available")
)

// Source is the ingestion boundary. Every method returns typed records that
// the aggregator consumes unchanged.
type Source interface {
	ListRepositories(ctx context.Context) ([]activity.RepositoryListing, error)
	ListContributors(ctx context.Context, repos []activity.RepositoryListing) ([]activity.ContributorListing, error)
	ListCommits(ctx context.Context, repos []activity.RepositoryListing) ([]activity.CommitRecord, error)
	ListPullRequests(ctx context.Context, repos []activity.RepositoryListing) ([]activity.PullRequestRecord, error)
	ListIssues(ctx context.Context, repos []activity.RepositoryListing) ([]activity.IssueRecord, error)
}

// Config configures the dashboard service.
type Config struct {
	Org        string
	WebBaseURL string
	// MaxAge is how long a cached aggregate is served without refetching.
	MaxAge time.Duration
	// MemoTTL is how long an in-process aggregate is reused without consulting the cache.
	MemoTTL time.Duration
	// Retention is the cache expiry for collections and the aggregate.
	Retention     time.Duration
	CacheDisabled bool
	Location      *time.Location
	Now           func() time.Time
}

// RefreshStatus describes the most recent refresh attempt.
type RefreshStatus struct {
	RunID             string        `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	FailedCollections []string      `json:"failed_collections,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// Failed reports whether any part of the refresh failed.
func (s RefreshStatus) Failed() bool {
	return s.Error != "" || len(s.FailedCollections) > 0
}

// Service orchestrates fetching, caching, and aggregating organization activity.
type Service struct {
	source     Source
	cache      store.Cache
	aggregator *activity.Aggregator
	cfg        Config
	logger     *zap.Logger
	metrics    *Metrics

	group singleflight.Group

	mu          sync.RWMutex
	latest      *activity.OrgAggregate
	memoizedAt  time.Time
	lastRefresh RefreshStatus
}

// NewService creates a dashboard service. A nil cache falls back to an in-memory cache.
func NewService(source Source, cache store.Cache, cfg Config, logger *zap.Logger, metrics *Metrics) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cache == nil {
		cache = store.NewMemoryCache()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = time.Minute
	}
	if cfg.Retention < cfg.MaxAge {
		cfg.Retention = cfg.MaxAge
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	aggregator := activity.NewAggregator(cfg.Org)
	if cfg.WebBaseURL != "" {
		aggregator.WebBaseURL = cfg.WebBaseURL
	}

	return &Service{
		source:     source,
		cache:      cache,
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Latest returns the last aggregate held in memory without fetching.
func (s *Service) Latest() (*activity.OrgAggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// LastRefresh returns the status of the most recent refresh.
func (s *Service) LastRefresh() RefreshStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Location returns the timezone used for date windows and monthly buckets.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// Aggregate returns the current aggregate. It is served from the in-process
// memo, then from a fresh cached copy, and otherwise rebuilt. Concurrent
// callers share one lookup, and a rebuild joins any refresh already running.
func (s *Service) Aggregate(ctx context.Context) (*activity.OrgAggregate, error) {
	now := s.cfg.Now()
	s.mu.RLock()
	if s.latest != nil && now.Sub(s.memoizedAt) < s.cfg.MemoTTL {
		latest := s.latest
		s.mu.RUnlock()
		s.metrics.lookup("memo")
		return latest, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.group.Do(KeyAggregate, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		if agg, ok := s.cachedAggregate(detached); ok {
			s.metrics.lookup("cache")
			return agg, nil
		}
		s.metrics.lookup("refresh")
		run, err := s.joinRefresh(detached)
		if err != nil {
			return nil, err
		}
		return run.aggregate, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*activity.OrgAggregate), nil
}

// Refresh rebuilds the aggregate from the source regardless of cache age.
func (s *Service) Refresh(ctx context.Context) (*activity.OrgAggregate, error) {
	agg, _, err := s.RefreshWithStatus(ctx)
	return agg, err
}

// RefreshWithStatus is Refresh that also returns the status of the run that
// produced the aggregate. A cancelled caller stops waiting, but the shared
// rebuild keeps running for everyone else joined to it.
func (s *Service) RefreshWithStatus(ctx context.Context) (*activity.OrgAggregate, RefreshStatus, error) {
	results := s.group.DoChan(flightRefresh, s.refreshFlight(ctx))
	select {
	case <-ctx.Done():
		return nil, RefreshStatus{}, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, RefreshStatus{}, result.Err
		}
		run := result.Val.(refreshRun)
		return run.aggregate, run.status, nil
	}
}

func (s *Service) joinRefresh(ctx context.Context) (refreshRun, error) {
	result, err, _ := s.group.Do(flightRefresh, s.refreshFlight(ctx))
	if err != nil {
		return refreshRun{}, err
	}
	return result.(refreshRun), nil
}

func (s *Service) refreshFlight(ctx context.Context) func() (any, error) {
	return func() (any, error) {
		run, err := s.refresh(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return run, nil
	}
}

func (s *Service) cachedAggregate(ctx context.Context) (*activity.OrgAggregate, bool) {
	if s.cfg.CacheDisabled {
		return nil, false
	}
	entry, ok, err := s.cache.Get(ctx, KeyAggregate)
	if err != nil {
		s.logger.Warn("aggregate cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok || entry.Age(s.cfg.Now()) >= s.cfg.MaxAge {
		return nil, false
	}

	var agg activity.OrgAggregate
	if err := json.Unmarshal(entry.Payload, &agg); err != nil {
		s.logger.Warn("discarding undecodable cached aggregate", zap.Error(err))
		return nil, false
	}
	s.remember(&agg)
	return &agg, true
}

func (s *Service) refresh(ctx context.Context) (refreshRun, error) {
	started := s.cfg.Now()
	status := RefreshStatus{RunID: uuid.NewString(), StartedAt: started}
	logger := s.logger.With(zap.String("run_id", status.RunID), zap.String("org", s.cfg.Org))

	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer(tracerName).Start(ctx, "dashboard.refresh", trace.WithAttributes(
			attribute.String("dashboard.org", s.cfg.Org),
			attribute.String("dashboard.run_id", status.RunID),
		))
		defer span.End()
	}
	logger.Debug("dashboard refresh started")

	agg, err := s.build(ctx, logger, &status)
	status.Duration = s.cfg.Now().Sub(started)
	if err != nil {
		status.Error = err.Error()
	}
	s.mu.Lock()
	s.lastRefresh = status
	s.mu.Unlock()
	s.metrics.observeRefresh(status)

	if span != nil {
		span.SetAttributes(attribute.StringSlice("dashboard.failed_collections", status.FailedCollections))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "refresh completed")
		}
	}

	if err != nil {
		logger.Error("dashboard refresh failed", zap.Error(err), zap.Duration("duration", status.Duration))
		if latest, ok := s.Latest(); ok {
			return refreshRun{aggregate: latest, status: status}, nil
		}
		return refreshRun{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	logger.Info(
		"dashboard refresh completed",
		zap.Int("contributors", agg.UniqueContributors),
		zap.Int("repositories", len(agg.PerRepository)),
		zap.Int("commits", agg.TotalCommits),
		zap.Int("pull_requests", agg.TotalPullRequests),
		zap.Int("issues", agg.TotalIssues),
		zap.Strings("failed_collections", status.FailedCollections),
		zap.Duration("duration", status.Duration),
	)
	return refreshRun{aggregate: agg, status: status}, nil
}

// build fetches repositories first, then the four activity collections
// concurrently. Each collection settles on its own: a failed fetch falls back
// to its cached copy, or to empty, and never blocks the others.
func (s *Service) build(ctx context.Context, logger *zap.Logger, status *RefreshStatus) (*activity.OrgAggregate, error) {
	repos, repoOutcome := settle(ctx, s, logger, KeyRepositories, s.source.ListRepositories)
	if repoOutcome.failed && !repoOutcome.fromCache {
		return nil, fmt.Errorf("list repositories: %w", repoOutcome.err)
	}

	var (
		in       = activity.Input{Repositories: repos}
		outcomes [4]collectionOutcome
		wg       sync.WaitGroup
	)
	wg.Go(func() {
		in.Contributors, outcomes[0] = settle(ctx, s, logger, KeyContributors, func(ctx context.Context) ([]activity.ContributorListing, error) {
			return s.source.ListContributors(ctx, repos)
		})
	})
	wg.Go(func() {
		in.Commits, outcomes[1] = settle(ctx, s, logger, KeyCommits, func(ctx context.Context) ([]activity.CommitRecord, error) {
			return s.source.ListCommits(ctx, repos)
		})
	})
	wg.Go(func() {
		in.PullRequests, outcomes[2] = settle(ctx, s, logger, KeyPullRequests, func(ctx context.Context) ([]activity.PullRequestRecord, error) {
			return s.source.ListPullRequests(ctx, repos)
		})
	})
	wg.Go(func() {
		in.Issues, outcomes[3] = settle(ctx, s, logger, KeyIssues, func(ctx context.Context) ([]activity.IssueRecord, error) {
			return s.source.ListIssues(ctx, repos)
		})
	})
	wg.Wait()

	for _, outcome := range append([]collectionOutcome{repoOutcome}, outcomes[:]...) {
		if outcome.failed {
			status.FailedCollections = append(status.FailedCollections, outcome.key)
		}
	}
	sort.Strings(status.FailedCollections)

	agg := s.aggregator.Aggregate(in)
	agg.GeneratedAt = s.cfg.Now().UTC()
	if err := s.save(ctx, KeyAggregate, agg); err != nil {
		logger.Warn("aggregate cache write failed", zap.Error(err))
	}
	s.remember(&agg)
	return &agg, nil
}

type collectionOutcome struct {
	key       string
	failed    bool
	fromCache bool
	err       error
}

func settle[T any](
	ctx context.Context,
	s *Service,
	logger *zap.Logger,
	key string,
	fetch func(ctx context.Context) ([]T, error),
) ([]T, collectionOutcome) {
	outcome := collectionOutcome{key: key}
	items, err := fetch(ctx)
	if err == nil {
		if storeErr := s.save(ctx, key, items); storeErr != nil {
			logger.Warn("collection cache write failed", zap.String("collection", key), zap.Error(storeErr))
		}
		return items, outcome
	}

	outcome.failed = true
	outcome.err = err
	s.metrics.collectionFailed(key)

	cached, ok := loadCached[T](ctx, s, key)
	outcome.fromCache = ok
	logger.Warn(
		"collection fetch failed",
		zap.String("collection", key),
		zap.Bool("using_cached_copy", ok),
		zap.Error(err),
	)
	return cached, outcome
}

func loadCached[T any](ctx context.Context, s *Service, key string) ([]T, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(entry.Payload, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *Service) save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.cache.Set(ctx, key, store.Entry{Payload: payload, LastFetched: s.cfg.Now()}, s.cfg.Retention)
}

func (s *Service) remember(agg *activity.OrgAggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = agg
	s.memoizedAt = s.cfg.Now()
}
