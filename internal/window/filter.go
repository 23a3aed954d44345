package window

import (
	"sort"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
)

// FilteredMetrics are one contributor's counts inside a window.
type FilteredMetrics struct {
	Commits       int `json:"commits"`
	PullRequests  int `json:"pull_requests"`
	Contributions int `json:"contributions"`
	Repositories  int `json:"repositories"`
}

// Summary is the org-wide view of a window.
type Summary struct {
	TotalCommits       int `json:"total_commits"`
	TotalPullRequests  int `json:"total_pull_requests"`
	ActiveContributors int `json:"active_contributors"`
	ActiveRepositories int `json:"active_repositories"`
}

// RepositoryMetrics are in-window counts for one repository of one contributor.
type RepositoryMetrics struct {
	Name          string `json:"name"`
	Commits       int    `json:"commits"`
	PullRequests  int    `json:"pull_requests"`
	Contributions int    `json:"contributions"`
}

// Counts always come from the timestamp sequences. An open window matches every
// timestamp, so unfiltered and all-covering results agree by construction.
func repositoryMetrics(repo activity.RepositoryActivity, w Window) RepositoryMetrics {
	metrics := RepositoryMetrics{Name: repo.Name}
	metrics.Commits = countWithin(repo.CommitTimestamps, w)
	metrics.PullRequests = countWithin(repo.PullRequestTimestamps, w)
	metrics.Contributions = metrics.Commits + metrics.PullRequests
	return metrics
}

// Metrics computes a contributor's counts inside w.
func Metrics(contributor activity.Contributor, w Window) FilteredMetrics {
	var result FilteredMetrics
	for _, repo := range contributor.Repositories {
		repoMetrics := repositoryMetrics(repo, w)
		result.Commits += repoMetrics.Commits
		result.PullRequests += repoMetrics.PullRequests
		if repoMetrics.Contributions > 0 {
			result.Repositories++
		}
	}
	result.Contributions = result.Commits + result.PullRequests
	return result
}

// Breakdown lists the contributor's active repositories inside w, busiest first.
func Breakdown(contributor activity.Contributor, w Window) []RepositoryMetrics {
	result := make([]RepositoryMetrics, 0, len(contributor.Repositories))
	for _, repo := range contributor.Repositories {
		repoMetrics := repositoryMetrics(repo, w)
		if repoMetrics.Contributions == 0 {
			continue
		}
		result = append(result, repoMetrics)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Contributions != result[j].Contributions {
			return result[i].Contributions > result[j].Contributions
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Summarize computes org-wide totals and distinct active repositories inside w.
func Summarize(contributors []activity.Contributor, w Window) Summary {
	var summary Summary
	activeRepos := make(map[string]struct{})
	for _, contributor := range contributors {
		metrics := FilteredMetrics{}
		for _, repo := range contributor.Repositories {
			repoMetrics := repositoryMetrics(repo, w)
			metrics.Commits += repoMetrics.Commits
			metrics.PullRequests += repoMetrics.PullRequests
			if repoMetrics.Contributions > 0 {
				activeRepos[repo.Name] = struct{}{}
			}
		}
		metrics.Contributions = metrics.Commits + metrics.PullRequests

		summary.TotalCommits += metrics.Commits
		summary.TotalPullRequests += metrics.PullRequests
		if metrics.Contributions > 0 {
			summary.ActiveContributors++
		}
	}
	summary.ActiveRepositories = len(activeRepos)
	return summary
}

func countWithin(timestamps []time.Time, w Window) int {
	if !w.Bounded() {
		return len(timestamps)
	}
	count := 0
	for _, ts := range timestamps {
		if w.Contains(ts) {
			count++
		}
	}
	return count
}
