package exporter

import (
	"sort"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/dashboard"
	"github.com/cam3ron2/org-dashboard/internal/githubapi"
)

// AggregateSource exposes the dashboard state rendered as gauges.
type AggregateSource interface {
	Latest() (*activity.OrgAggregate, bool)
	LastRefresh() dashboard.RefreshStatus
}

// RateLimitReader reports the GitHub rate-limit budget seen by the source.
type RateLimitReader interface {
	RateLimit() githubapi.RateLimitSnapshot
}

// AggregateSnapshot renders the latest aggregate as gauges. It never triggers a fetch.
type AggregateSnapshot struct {
	Org       string
	Source    AggregateSource
	RateLimit RateLimitReader
}

// Snapshot returns org totals, per-contributor and per-repository gauges, plus
// refresh and rate-limit state.
func (s *AggregateSnapshot) Snapshot() []MetricPoint {
	if s == nil || s.Source == nil {
		return nil
	}

	var points []MetricPoint
	orgLabels := map[string]string{"org": s.Org}
	add := func(name, help string, labels map[string]string, value float64) {
		points = append(points, MetricPoint{Name: name, Help: help, Labels: labels, Value: value})
	}

	status := s.Source.LastRefresh()
	if !status.StartedAt.IsZero() {
		add("org_dashboard_last_refresh_timestamp_seconds", "Start time of the last refresh.", orgLabels, float64(status.StartedAt.Unix()))
		add("org_dashboard_last_refresh_success", "1 when the last refresh had no failed collections.", orgLabels, boolValue(!status.Failed()))
	}

	if s.RateLimit != nil {
		rate := s.RateLimit.RateLimit()
		if rate.MinRemaining >= 0 {
			add("org_dashboard_github_rate_limit_remaining", "Lowest remaining GitHub request budget observed.", orgLabels, float64(rate.MinRemaining))
		}
		add("org_dashboard_github_requests", "GitHub API responses observed by the source.", orgLabels, float64(rate.Requests))
		add("org_dashboard_github_secondary_limit_hits", "GitHub secondary rate-limit responses observed.", orgLabels, float64(rate.SecondaryLimitHits))
	}

	agg, ok := s.Source.Latest()
	if !ok || agg == nil {
		return points
	}

	add("org_dashboard_aggregate_generated_timestamp_seconds", "Generation time of the current aggregate.", orgLabels, float64(agg.GeneratedAt.Unix()))
	add("org_dashboard_org_commits", "Commits across the organization.", orgLabels, float64(agg.TotalCommits))
	add("org_dashboard_org_pull_requests", "Merged pull requests across the organization.", orgLabels, float64(agg.TotalPullRequests))
	add("org_dashboard_org_issues", "Issues across the organization.", orgLabels, float64(agg.TotalIssues))
	add("org_dashboard_org_contributions", "Commits plus merged pull requests across the organization.", orgLabels, float64(agg.TotalContributions))
	add("org_dashboard_org_contributors", "Distinct contributors in the organization.", orgLabels, float64(agg.UniqueContributors))

	for _, contributor := range agg.Contributors {
		labels := map[string]string{"org": s.Org, "user": contributor.Login}
		add("org_dashboard_contributor_commits", "Commits authored by a contributor.", labels, float64(contributor.TotalCommits()))
		add("org_dashboard_contributor_pull_requests", "Merged pull requests credited to a contributor.", labels, float64(contributor.TotalPullRequests()))
		add("org_dashboard_contributor_contributions", "Contributions credited to a contributor.", labels, float64(contributor.TotalContributions()))
	}

	names := make([]string, 0, len(agg.PerRepository))
	for name := range agg.PerRepository {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rollup := agg.PerRepository[name]
		if rollup == nil {
			continue
		}
		labels := map[string]string{"org": s.Org, "repo": name}
		add("org_dashboard_repository_commits", "Commits in a repository.", labels, float64(rollup.Commits))
		add("org_dashboard_repository_pull_requests", "Merged pull requests in a repository.", labels, float64(rollup.PullRequests))
		add("org_dashboard_repository_issues", "Issues in a repository.", labels, float64(rollup.Issues))
		add("org_dashboard_repository_contributors", "Distinct contributors in a repository.", labels, float64(len(rollup.Contributors)))
	}
	return points
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
