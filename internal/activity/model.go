package activity

import (
	"encoding/json"
	"time"
)

// Identity is a resolved contributor identity.
type Identity struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// RepositoryActivity is one contributor's activity within one repository.
type RepositoryActivity struct {
	Name                  string      `json:"name"`
	CommitCount           int         `json:"commits"`
	PullRequestCount      int         `json:"pull_requests"`
	ContributionCount     int         `json:"contributions"`
	CommitTimestamps      []time.Time `json:"commit_timestamps"`
	PullRequestTimestamps []time.Time `json:"pull_request_timestamps"`
}

// Contributor is a person who authored commits or took part in merged pull requests.
// Totals are derived from Repositories and never stored.
type Contributor struct {
	Login        string               `json:"login"`
	AvatarURL    string               `json:"avatar_url"`
	Repositories []RepositoryActivity `json:"repositories"`
}

// TotalCommits sums commit counts across repositories.
func (c Contributor) TotalCommits() int {
	total := 0
	for _, repo := range c.Repositories {
		total += repo.CommitCount
	}
	return total
}

// TotalPullRequests sums pull request counts across repositories.
func (c Contributor) TotalPullRequests() int {
	total := 0
	for _, repo := range c.Repositories {
		total += repo.PullRequestCount
	}
	return total
}

// TotalContributions sums contribution counts across repositories.
func (c Contributor) TotalContributions() int {
	total := 0
	for _, repo := range c.Repositories {
		total += repo.ContributionCount
	}
	return total
}

// MarshalJSON includes the derived totals.
func (c Contributor) MarshalJSON() ([]byte, error) {
	type plain Contributor
	return json.Marshal(struct {
		plain
		Commits       int `json:"total_commits"`
		PullRequests  int `json:"total_pull_requests"`
		Contributions int `json:"total_contributions"`
	}{
		plain:         plain(c),
		Commits:       c.TotalCommits(),
		PullRequests:  c.TotalPullRequests(),
		Contributions: c.TotalContributions(),
	})
}

// CommitEvent is one commit scoped to a repository rollup.
type CommitEvent struct {
	SHA       string    `json:"sha"`
	Author    Identity  `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
}

// PullRequestEvent is one merged pull request scoped to a repository rollup.
type PullRequestEvent struct {
	Number   int       `json:"number"`
	Author   Identity  `json:"author"`
	MergedBy *Identity `json:"merged_by,omitempty"`
	MergedAt time.Time `json:"merged_at"`
	URL      string    `json:"url"`
}

// IssueEvent is one issue scoped to a repository rollup.
type IssueEvent struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Author    Identity  `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

// RepoRollup is the per-repository view of an aggregation run.
type RepoRollup struct {
	Name              string             `json:"name"`
	Commits           int                `json:"commits"`
	PullRequests      int                `json:"pull_requests"`
	Issues            int                `json:"issues"`
	Contributors      []string           `json:"contributors"`
	CommitEvents      []CommitEvent      `json:"commit_events"`
	PullRequestEvents []PullRequestEvent `json:"pull_request_events"`
	IssueEvents       []IssueEvent       `json:"issue_events"`
}

// OrgAggregate is the full-history rollup for one organization.
type OrgAggregate struct {
	Org                string                 `json:"org"`
	TotalCommits       int                    `json:"total_commits"`
	TotalPullRequests  int                    `json:"total_pull_requests"`
	TotalIssues        int                    `json:"total_issues"`
	TotalContributions int                    `json:"total_contributions"`
	UniqueContributors int                    `json:"unique_contributors"`
	Contributors       []Contributor          `json:"contributors"`
	PerRepository      map[string]*RepoRollup `json:"per_repository"`
	GeneratedAt        time.Time              `json:"generated_at"`
}

// FindContributor returns the contributor with login.
func (a *OrgAggregate) FindContributor(login string) (Contributor, bool) {
	if a == nil {
		return Contributor{}, false
	}
	for _, contributor := range a.Contributors {
		if contributor.Login == login {
			return contributor, true
		}
	}
	return Contributor{}, false
}
