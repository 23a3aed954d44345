package activity

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	resolver := NewResolver([]ContributorListing{
		{ID: 1, Login: "alice", AvatarURL: "https://avatars/1"},
		{ID: 2, Login: ""},
	})

	testCases := []struct {
		name string
		id   int64
		want Identity
	}{
		{name: "known", id: 1, want: Identity{Login: "alice", AvatarURL: "https://avatars/1"}},
		{name: "missing", id: 42, want: Identity{Login: "unknown-42"}},
		{name: "listed_without_login", id: 2, want: Identity{Login: "unknown-2"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := resolver.Resolve(tc.id); got != tc.want {
				t.Fatalf("Resolve(%d) = %+v, want %+v", tc.id, got, tc.want)
			}
		})
	}
}

func TestNilResolver(t *testing.T) {
	t.Parallel()

	var resolver *Resolver
	if got := resolver.Resolve(7); got.Login != "unknown-7" {
		t.Fatalf("Resolve on nil resolver = %+v", got)
	}
}

func TestContributorJSONIncludesTotals(t *testing.T) {
	t.Parallel()

	contributor := Contributor{
		Login: "alice",
		Repositories: []RepositoryActivity{
			{Name: "core", CommitCount: 2, PullRequestCount: 1, ContributionCount: 3},
			{Name: "docs", CommitCount: 1, ContributionCount: 1},
		},
	}
	payload, err := json.Marshal(contributor)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"total_commits":3`, `"total_pull_requests":1`, `"total_contributions":4`, `"login":"alice"`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("payload %s missing %s", payload, want)
		}
	}

	var decoded Contributor
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TotalContributions() != 4 {
		t.Fatalf("decoded contributions = %d, want 4", decoded.TotalContributions())
	}
}
