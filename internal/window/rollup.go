package window

import (
	"sort"

	"github.com/cam3ron2/org-dashboard/internal/activity"
)

// Rollup narrows a repository rollup to the events inside w. Counts and the
// contributor list are recomputed from the kept events; issues are kept by
// creation time.
func Rollup(rollup activity.RepoRollup, w Window) activity.RepoRollup {
	out := activity.RepoRollup{
		Name:              rollup.Name,
		CommitEvents:      []activity.CommitEvent{},
		PullRequestEvents: []activity.PullRequestEvent{},
		IssueEvents:       []activity.IssueEvent{},
	}
	contributors := make(map[string]struct{})

	for _, event := range rollup.CommitEvents {
		if !w.Contains(event.Timestamp) {
			continue
		}
		out.CommitEvents = append(out.CommitEvents, event)
		contributors[event.Author.Login] = struct{}{}
	}
	for _, event := range rollup.PullRequestEvents {
		if !w.Contains(event.MergedAt) {
			continue
		}
		out.PullRequestEvents = append(out.PullRequestEvents, event)
		contributors[event.Author.Login] = struct{}{}
		if event.MergedBy != nil {
			contributors[event.MergedBy.Login] = struct{}{}
		}
	}
	for _, event := range rollup.IssueEvents {
		if w.Contains(event.CreatedAt) {
			out.IssueEvents = append(out.IssueEvents, event)
		}
	}

	out.Commits = len(out.CommitEvents)
	out.PullRequests = len(out.PullRequestEvents)
	out.Issues = len(out.IssueEvents)
	out.Contributors = make([]string, 0, len(contributors))
	for login := range contributors {
		out.Contributors = append(out.Contributors, login)
	}
	sort.Strings(out.Contributors)
	return out
}
