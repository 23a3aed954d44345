package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/window"
)

// ContributorView is a contributor with counts recomputed for a window.
type ContributorView struct {
	Login     string                 `json:"login"`
	AvatarURL string                 `json:"avatar_url"`
	Metrics   window.FilteredMetrics `json:"metrics"`
}

// ContributorDetail adds the per-repository breakdown to a contributor view.
type ContributorDetail struct {
	ContributorView
	Repositories []window.RepositoryMetrics `json:"repositories"`
}

// SummaryView is the org-wide summary for a window.
type SummaryView struct {
	window.Summary
	Org         string    `json:"org"`
	Window      string    `json:"window"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Contributors lists contributors with in-window counts, most contributions
// first. Bounded windows drop contributors with no activity inside them.
func (s *Service) Contributors(ctx context.Context, w window.Window) ([]ContributorView, error) {
	agg, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ContributorView, 0, len(agg.Contributors))
	for _, contributor := range agg.Contributors {
		metrics := window.Metrics(contributor, w)
		if w.Bounded() && metrics.Contributions == 0 {
			continue
		}
		views = append(views, ContributorView{
			Login:     contributor.Login,
			AvatarURL: contributor.AvatarURL,
			Metrics:   metrics,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Metrics.Contributions != views[j].Metrics.Contributions {
			return views[i].Metrics.Contributions > views[j].Metrics.Contributions
		}
		return views[i].Login < views[j].Login
	})
	return views, nil
}

// Contributor returns one contributor's in-window counts and repository breakdown.
func (s *Service) Contributor(ctx context.Context, login string, w window.Window) (ContributorDetail, error) {
	agg, err := s.Aggregate(ctx)
	if err != nil {
		return ContributorDetail{}, err
	}
	contributor, ok := agg.FindContributor(login)
	if !ok {
		return ContributorDetail{}, ErrNotFound
	}
	return ContributorDetail{
		ContributorView: ContributorView{
			Login:     contributor.Login,
			AvatarURL: contributor.AvatarURL,
			Metrics:   window.Metrics(contributor, w),
		},
		Repositories: window.Breakdown(contributor, w),
	}, nil
}

// Summary returns org-wide in-window totals.
func (s *Service) Summary(ctx context.Context, w window.Window) (SummaryView, error) {
	agg, err := s.Aggregate(ctx)
	if err != nil {
		return SummaryView{}, err
	}
	return SummaryView{
		Summary:     window.Summarize(agg.Contributors, w),
		Org:         agg.Org,
		Window:      w.String(),
		GeneratedAt: agg.GeneratedAt,
	}, nil
}

// Repository returns a repository rollup narrowed to w. The open window returns
// the full rollup.
func (s *Service) Repository(ctx context.Context, name string, w window.Window) (activity.RepoRollup, error) {
	agg, err := s.Aggregate(ctx)
	if err != nil {
		return activity.RepoRollup{}, err
	}
	rollup, ok := agg.PerRepository[name]
	if !ok || rollup == nil {
		return activity.RepoRollup{}, ErrNotFound
	}
	if !w.Bounded() {
		return *rollup, nil
	}
	return window.Rollup(*rollup, w), nil
}

// Monthly buckets in-window activity by calendar month in the service location.
func (s *Service) Monthly(ctx context.Context, w window.Window) ([]window.MonthBucket, error) {
	agg, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return window.Monthly(agg.Contributors, w, s.cfg.Location), nil
}
