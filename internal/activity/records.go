package activity

import "time"

// CommitRecord is one upstream commit. Nil ids mean the upstream value was null.
type CommitRecord struct {
	RepoID      *int64    `json:"repo_id"`
	AuthorID    *int64    `json:"author_id"`
	CommitterID *int64    `json:"committer_id"`
	SHA         string    `json:"sha"`
	Timestamp   time.Time `json:"timestamp"`
}

// PullRequestRecord is one upstream pull request. MergedAt is nil for unmerged pull requests.
type PullRequestRecord struct {
	RepoID     *int64     `json:"repo_id"`
	UserID     *int64     `json:"user_id"`
	MergedByID *int64     `json:"merged_by_id"`
	Number     int        `json:"number"`
	MergedAt   *time.Time `json:"merged_at"`
}

// IssueRecord is one upstream issue.
type IssueRecord struct {
	RepoID    *int64    `json:"repo_id"`
	UserID    *int64    `json:"user_id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// RepositoryListing maps a repository id to its name.
type RepositoryListing struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ContributorListing maps an actor id to its login and avatar.
type ContributorListing struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// ID returns a pointer to id, for building records with non-null ids.
func ID(id int64) *int64 {
	return &id
}

// Time returns a pointer to ts.
func Time(ts time.Time) *time.Time {
	return &ts
}
