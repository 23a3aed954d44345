package githubapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/google/go-github/v75/github"
)

// PullRequestGetter is the subset of the go-github pull request service used here.
type PullRequestGetter interface {
	Get(ctx context.Context, owner, repo string, number int) (*github.PullRequest, *github.Response, error)
}

// MergerLookup fills merger ids for merged pull requests, which the list
// endpoint leaves out.
type MergerLookup struct {
	pulls PullRequestGetter
}

// NewMergerLookup creates a merger lookup over a go-github REST client.
func NewMergerLookup(rest *RESTClient) (*MergerLookup, error) {
	if rest == nil || rest.Client == nil {
		return nil, fmt.Errorf("github rest client is required")
	}
	return &MergerLookup{pulls: rest.Client.PullRequests}, nil
}

// Fill sets MergedByID on every merged record that does not have one yet.
// Records whose pull request is gone keep a nil merger.
func (m *MergerLookup) Fill(ctx context.Context, owner, repo string, records []activity.PullRequestRecord) error {
	for i := range records {
		record := &records[i]
		if record.MergedAt == nil || record.MergedByID != nil {
			continue
		}

		pr, resp, err := m.pulls.Get(ctx, owner, repo, record.Number)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				continue
			}
			return fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, record.Number, err)
		}
		if id := pr.GetMergedBy().GetID(); id != 0 {
			record.MergedByID = activity.ID(id)
		}
	}
	return nil
}
