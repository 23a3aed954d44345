package exporter

import (
	"testing"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/dashboard"
	"github.com/cam3ron2/org-dashboard/internal/githubapi"
)

type fakeAggregateSource struct {
	agg    *activity.OrgAggregate
	status dashboard.RefreshStatus
}

func (f fakeAggregateSource) Latest() (*activity.OrgAggregate, bool) {
	return f.agg, f.agg != nil
}

func (f fakeAggregateSource) LastRefresh() dashboard.RefreshStatus {
	return f.status
}

type fakeRateLimit githubapi.RateLimitSnapshot

func (f fakeRateLimit) RateLimit() githubapi.RateLimitSnapshot {
	return githubapi.RateLimitSnapshot(f)
}

func pointValues(points []MetricPoint) map[string]float64 {
	values := make(map[string]float64, len(points))
	for _, point := range points {
		key := point.Name
		if user := point.Labels["user"]; user != "" {
			key += "/" + user
		}
		if repo := point.Labels["repo"]; repo != "" {
			key += "/" + repo
		}
		values[key] = point.Value
	}
	return values
}

func TestAggregateSnapshot(t *testing.T) {
	t.Parallel()

	generated := time.Unix(1739836800, 0).UTC()
	agg := &activity.OrgAggregate{
		Org:                "acme",
		TotalCommits:       3,
		TotalPullRequests:  1,
		TotalIssues:        2,
		TotalContributions: 4,
		UniqueContributors: 1,
		GeneratedAt:        generated,
		Contributors: []activity.Contributor{{
			Login: "alice",
			Repositories: []activity.RepositoryActivity{
				{Name: "core", CommitCount: 3, PullRequestCount: 1, ContributionCount: 4},
			},
		}},
		PerRepository: map[string]*activity.RepoRollup{
			"core":  {Name: "core", Commits: 3, PullRequests: 1, Issues: 2, Contributors: []string{"alice"}},
			"empty": {Name: "empty", Contributors: []string{}},
		},
	}
	snapshot := &AggregateSnapshot{
		Org: "acme",
		Source: fakeAggregateSource{
			agg:    agg,
			status: dashboard.RefreshStatus{StartedAt: generated, FailedCollections: []string{"issues"}},
		},
		RateLimit: fakeRateLimit{MinRemaining: 4200, Requests: 12, SecondaryLimitHits: 1},
	}

	values := pointValues(snapshot.Snapshot())
	want := map[string]float64{
		"org_dashboard_org_commits":                           3,
		"org_dashboard_org_pull_requests":                     1,
		"org_dashboard_org_issues":                            2,
		"org_dashboard_org_contributions":                     4,
		"org_dashboard_org_contributors":                      1,
		"org_dashboard_contributor_commits/alice":             3,
		"org_dashboard_contributor_contributions/alice":       4,
		"org_dashboard_repository_issues/core":                2,
		"org_dashboard_repository_contributors/core":          1,
		"org_dashboard_repository_commits/empty":              0,
		"org_dashboard_last_refresh_success":                  0,
		"org_dashboard_last_refresh_timestamp_seconds":        float64(generated.Unix()),
		"org_dashboard_aggregate_generated_timestamp_seconds": float64(generated.Unix()),
		"org_dashboard_github_rate_limit_remaining":           4200,
		"org_dashboard_github_requests":                       12,
		"org_dashboard_github_secondary_limit_hits":           1,
	}
	for key, wantValue := range want {
		got, ok := values[key]
		if !ok {
			t.Fatalf("snapshot missing %s", key)
		}
		if got != wantValue {
			t.Fatalf("%s = %v, want %v", key, got, wantValue)
		}
	}
}

func TestAggregateSnapshotWithoutAggregate(t *testing.T) {
	t.Parallel()

	snapshot := &AggregateSnapshot{
		Org:       "acme",
		Source:    fakeAggregateSource{},
		RateLimit: fakeRateLimit{MinRemaining: -1},
	}
	values := pointValues(snapshot.Snapshot())
	if _, ok := values["org_dashboard_org_commits"]; ok {
		t.Fatalf("snapshot without aggregate rendered org totals: %v", values)
	}
	if _, ok := values["org_dashboard_github_rate_limit_remaining"]; ok {
		t.Fatalf("unknown rate-limit budget should not render: %v", values)
	}
	if _, ok := values["org_dashboard_last_refresh_success"]; ok {
		t.Fatalf("refresh gauges rendered before any refresh: %v", values)
	}

	var nilSnapshot *AggregateSnapshot
	if got := nilSnapshot.Snapshot(); got != nil {
		t.Fatalf("nil snapshot = %v, want nil", got)
	}
}
