package window

import (
	"sort"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
)

const monthFormat = "2006-01"

// MonthBucket is one calendar month of in-window activity.
type MonthBucket struct {
	Month        string `json:"month"`
	Commits      int    `json:"commits"`
	PullRequests int    `json:"pull_requests"`
}

// Monthly buckets in-window commit and pull request timestamps by calendar month in loc.
// Buckets are returned in ascending month order.
func Monthly(contributors []activity.Contributor, w Window, loc *time.Location) []MonthBucket {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[string]*MonthBucket)
	bucket := func(ts time.Time) *MonthBucket {
		key := ts.In(loc).Format(monthFormat)
		entry, ok := buckets[key]
		if !ok {
			entry = &MonthBucket{Month: key}
			buckets[key] = entry
		}
		return entry
	}

	for _, contributor := range contributors {
		for _, repo := range contributor.Repositories {
			for _, ts := range repo.CommitTimestamps {
				if w.Contains(ts) {
					bucket(ts).Commits++
				}
			}
			for _, ts := range repo.PullRequestTimestamps {
				if w.Contains(ts) {
					bucket(ts).PullRequests++
				}
			}
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]MonthBucket, 0, len(keys))
	for _, key := range keys {
		result = append(result, *buckets[key])
	}
	return result
}
