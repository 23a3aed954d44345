package githubapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"go.uber.org/zap"
)

// OrgSourceConfig configures collection for one organization.
type OrgSourceConfig struct {
	Org               string
	RepoAllowlist     []string
	PerOrgConcurrency int
	// Lookback bounds commit, pull request and issue history. Zero fetches everything.
	Lookback time.Duration
	Now      func() time.Time
}

// RateLimitSnapshot summarizes rate-limit headers seen across calls.
type RateLimitSnapshot struct {
	MinRemaining       int
	ResetUnix          int64
	SecondaryLimitHits int
	Requests           int
}

// OrgSource collects activity records for every repository of one organization.
type OrgSource struct {
	data    *DataClient
	mergers *MergerLookup
	cfg     OrgSourceConfig
	logger  *zap.Logger

	mu   sync.Mutex
	rate RateLimitSnapshot
}

// NewOrgSource creates an organization source. mergers may be nil, in which
// case merged pull requests are credited to their authors only.
func NewOrgSource(data *DataClient, mergers *MergerLookup, cfg OrgSourceConfig, logger *zap.Logger) (*OrgSource, error) {
	if data == nil {
		return nil, fmt.Errorf("data client is required")
	}
	cfg.Org = strings.TrimSpace(cfg.Org)
	if cfg.Org == "" {
		return nil, fmt.Errorf("organization is required")
	}
	if cfg.PerOrgConcurrency <= 0 {
		cfg.PerOrgConcurrency = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgSource{
		data:    data,
		mergers: mergers,
		cfg:     cfg,
		logger:  logger,
		rate:    RateLimitSnapshot{MinRemaining: -1},
	}, nil
}

// Org returns the organization name.
func (s *OrgSource) Org() string {
	return s.cfg.Org
}

// RateLimit returns the rate-limit summary accumulated so far.
func (s *OrgSource) RateLimit() RateLimitSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// ListRepositories lists the organization's repositories that pass the allowlist.
// Archived repositories are kept since their history still counts.
func (s *OrgSource) ListRepositories(ctx context.Context) ([]activity.RepositoryListing, error) {
	result, err := s.data.ListOrgRepos(ctx, s.cfg.Org)
	s.observe(result.Metadata)
	if err != nil {
		return nil, err
	}
	if result.Status != EndpointStatusOK {
		return nil, fmt.Errorf("list org repos for %s: status %s", s.cfg.Org, result.Status)
	}

	repos := filterRepositories(result.Repos, s.cfg.RepoAllowlist)
	listing := make([]activity.RepositoryListing, 0, len(repos))
	for _, repo := range repos {
		listing = append(listing, repo.Listing())
	}
	return listing, nil
}

// ListContributors returns the union of every repository's contributor listing.
func (s *OrgSource) ListContributors(ctx context.Context, repos []activity.RepositoryListing) ([]activity.ContributorListing, error) {
	perRepo, err := forEachRepo(ctx, s, repos, "contributors", func(ctx context.Context, repo activity.RepositoryListing) ([]activity.ContributorListing, EndpointStatus, error) {
		result, err := s.data.ListRepoContributors(ctx, s.cfg.Org, repo.Name)
		s.observe(result.Metadata)
		return result.Contributors, result.Status, err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]activity.ContributorListing)
	for _, contributor := range perRepo {
		byID[contributor.ID] = contributor
	}
	merged := make([]activity.ContributorListing, 0, len(byID))
	for _, contributor := range byID {
		merged = append(merged, contributor)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

// ListCommits lists commits across repositories.
func (s *OrgSource) ListCommits(ctx context.Context, repos []activity.RepositoryListing) ([]activity.CommitRecord, error) {
	since := s.since()
	return forEachRepo(ctx, s, repos, "commits", func(ctx context.Context, repo activity.RepositoryListing) ([]activity.CommitRecord, EndpointStatus, error) {
		result, err := s.data.ListRepoCommits(ctx, s.cfg.Org, repo.Name, repo.ID, since)
		s.observe(result.Metadata)
		return result.Commits, result.Status, err
	})
}

// ListPullRequests lists closed pull requests across repositories and fills
// merger ids when a merger lookup is configured.
func (s *OrgSource) ListPullRequests(ctx context.Context, repos []activity.RepositoryListing) ([]activity.PullRequestRecord, error) {
	since := s.since()
	return forEachRepo(ctx, s, repos, "pull_requests", func(ctx context.Context, repo activity.RepositoryListing) ([]activity.PullRequestRecord, EndpointStatus, error) {
		result, err := s.data.ListRepoPullRequests(ctx, s.cfg.Org, repo.Name, repo.ID, since)
		s.observe(result.Metadata)
		if err != nil || result.Status != EndpointStatusOK || s.mergers == nil {
			return result.PullRequests, result.Status, err
		}
		if err := s.mergers.Fill(ctx, s.cfg.Org, repo.Name, result.PullRequests); err != nil {
			return nil, result.Status, err
		}
		return result.PullRequests, result.Status, nil
	})
}

// ListIssues lists issues across repositories.
func (s *OrgSource) ListIssues(ctx context.Context, repos []activity.RepositoryListing) ([]activity.IssueRecord, error) {
	since := s.since()
	return forEachRepo(ctx, s, repos, "issues", func(ctx context.Context, repo activity.RepositoryListing) ([]activity.IssueRecord, EndpointStatus, error) {
		result, err := s.data.ListRepoIssues(ctx, s.cfg.Org, repo.Name, repo.ID, since)
		s.observe(result.Metadata)
		return result.Issues, result.Status, err
	})
}

type repoOutcome[T any] struct {
	repo  string
	items []T
	err   error
}

// forEachRepo runs fetch for every repository on a bounded worker pool.
// Repositories answering with a non-OK status (empty, hidden, or still
// computing) contribute nothing and are logged; any hard error fails the
// whole collection.
func forEachRepo[T any](
	ctx context.Context,
	s *OrgSource,
	repos []activity.RepositoryListing,
	collection string,
	fetch func(ctx context.Context, repo activity.RepositoryListing) ([]T, EndpointStatus, error),
) ([]T, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	jobs := make(chan activity.RepositoryListing, len(repos))
	outcomes := make(chan repoOutcome[T], len(repos))

	var wg sync.WaitGroup
	for range min(s.cfg.PerOrgConcurrency, len(repos)) {
		wg.Go(func() {
			for repo := range jobs {
				if ctx.Err() != nil {
					outcomes <- repoOutcome[T]{repo: repo.Name, err: ctx.Err()}
					continue
				}
				items, status, err := fetch(ctx, repo)
				if err == nil && status != EndpointStatusOK {
					s.logger.Warn(
						"skipping repository collection",
						zap.String("org", s.cfg.Org),
						zap.String("repo", repo.Name),
						zap.String("collection", collection),
						zap.String("status", string(status)),
					)
					items = nil
				}
				outcomes <- repoOutcome[T]{repo: repo.Name, items: items, err: err}
			}
		})
	}
	for _, repo := range repos {
		jobs <- repo
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	var (
		all  []T
		errs []error
	)
	for outcome := range outcomes {
		if outcome.err != nil {
			errs = append(errs, fmt.Errorf("%s/%s %s: %w", s.cfg.Org, outcome.repo, collection, outcome.err))
			continue
		}
		all = append(all, outcome.items...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

func (s *OrgSource) since() time.Time {
	if s.cfg.Lookback <= 0 {
		return time.Time{}
	}
	return s.cfg.Now().UTC().Add(-s.cfg.Lookback)
}

func (s *OrgSource) observe(metadata CallMetadata) {
	if metadata.Attempts == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rate.Requests += metadata.Attempts
	headers := metadata.LastRateHeaders
	if headers.Remaining >= 0 && (s.rate.MinRemaining < 0 || headers.Remaining < s.rate.MinRemaining) {
		s.rate.MinRemaining = headers.Remaining
		s.rate.ResetUnix = headers.ResetUnix
	}
	if metadata.LastDecision.Reason == ReasonSecondaryLimit {
		s.rate.SecondaryLimitHits++
	}
}

func filterRepositories(repos []Repository, allowlist []string) []Repository {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, item := range allowlist {
		trimmed := strings.TrimSpace(item)
		if trimmed == "*" {
			allowed = nil
			break
		}
		if trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}

	filtered := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		if len(allowed) > 0 {
			if _, ok := allowed[repo.Name]; !ok {
				continue
			}
		}
		filtered = append(filtered, repo)
	}
	return filtered
}
