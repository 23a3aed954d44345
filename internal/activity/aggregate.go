package activity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultWebBaseURL = "https://github.com"

// Input is the raw record set for one aggregation run.
type Input struct {
	Commits      []CommitRecord
	PullRequests []PullRequestRecord
	Issues       []IssueRecord
	Repositories []RepositoryListing
	Contributors []ContributorListing
}

// Aggregator folds raw records into an OrgAggregate. It holds no state between runs.
type Aggregator struct {
	Org        string
	WebBaseURL string
}

// NewAggregator creates an aggregator for org.
func NewAggregator(org string) *Aggregator {
	return &Aggregator{Org: org, WebBaseURL: defaultWebBaseURL}
}

type contributorBuilder struct {
	identity Identity
	repos    map[string]*RepositoryActivity
}

type rollupBuilder struct {
	rollup       *RepoRollup
	contributors map[string]struct{}
}

type aggregation struct {
	agg          *Aggregator
	repoNames    map[int64]string
	resolver     *Resolver
	contributors map[string]*contributorBuilder
	rollups      map[string]*rollupBuilder
	out          OrgAggregate
}

// Aggregate builds the full-history aggregate. Records missing a required id are skipped;
// the run never fails on individual records.
func (a *Aggregator) Aggregate(in Input) OrgAggregate {
	run := &aggregation{
		agg:          a,
		repoNames:    make(map[int64]string, len(in.Repositories)),
		resolver:     NewResolver(in.Contributors),
		contributors: make(map[string]*contributorBuilder),
		rollups:      make(map[string]*rollupBuilder, len(in.Repositories)),
		out: OrgAggregate{
			Org: a.Org,
		},
	}
	for _, repo := range in.Repositories {
		run.repoNames[repo.ID] = repo.Name
		run.rollupFor(repo.Name)
	}

	for _, commit := range in.Commits {
		run.addCommit(commit)
	}
	for _, pr := range in.PullRequests {
		run.addPullRequest(pr)
	}
	for _, issue := range in.Issues {
		run.addIssue(issue)
	}

	return run.finish()
}

func (r *aggregation) addCommit(commit CommitRecord) {
	// Attribution is by author only; the committer id is ignored.
	if commit.RepoID == nil || commit.AuthorID == nil {
		return
	}
	repoName := r.repoName(*commit.RepoID)
	author := r.resolver.Resolve(*commit.AuthorID)

	repoActivity := r.repoActivity(author, repoName)
	repoActivity.CommitCount++
	repoActivity.ContributionCount++
	repoActivity.CommitTimestamps = append(repoActivity.CommitTimestamps, commit.Timestamp)

	r.out.TotalCommits++
	r.out.TotalContributions++

	rollup := r.rollupFor(repoName)
	rollup.rollup.Commits++
	rollup.contributors[author.Login] = struct{}{}
	rollup.rollup.CommitEvents = append(rollup.rollup.CommitEvents, CommitEvent{
		SHA:       commit.SHA,
		Author:    author,
		Timestamp: commit.Timestamp,
		URL:       r.webURL(repoName, "commit", commit.SHA),
	})
}

func (r *aggregation) addPullRequest(pr PullRequestRecord) {
	if pr.RepoID == nil || pr.MergedAt == nil {
		return
	}
	actorIDs := distinctIDs(pr.UserID, pr.MergedByID)
	if len(actorIDs) == 0 {
		return
	}
	repoName := r.repoName(*pr.RepoID)
	mergedAt := *pr.MergedAt

	rollup := r.rollupFor(repoName)
	for _, id := range actorIDs {
		identity := r.resolver.Resolve(id)
		repoActivity := r.repoActivity(identity, repoName)
		repoActivity.PullRequestCount++
		repoActivity.ContributionCount++
		repoActivity.PullRequestTimestamps = append(repoActivity.PullRequestTimestamps, mergedAt)
		rollup.contributors[identity.Login] = struct{}{}
	}

	// Org totals count the record once, however many identities it was credited to.
	r.out.TotalPullRequests++
	r.out.TotalContributions++

	event := PullRequestEvent{
		Number:   pr.Number,
		MergedAt: mergedAt,
		URL:      r.webURL(repoName, "pull", strconv.Itoa(pr.Number)),
	}
	if pr.UserID != nil {
		event.Author = r.resolver.Resolve(*pr.UserID)
	}
	if pr.MergedByID != nil {
		mergedBy := r.resolver.Resolve(*pr.MergedByID)
		event.MergedBy = &mergedBy
		if pr.UserID == nil {
			event.Author = mergedBy
		}
	}
	rollup.rollup.PullRequests++
	rollup.rollup.PullRequestEvents = append(rollup.rollup.PullRequestEvents, event)
}

func (r *aggregation) addIssue(issue IssueRecord) {
	if issue.RepoID == nil || issue.UserID == nil {
		return
	}
	repoName := r.repoName(*issue.RepoID)
	rollup := r.rollupFor(repoName)
	rollup.rollup.Issues++
	rollup.rollup.IssueEvents = append(rollup.rollup.IssueEvents, IssueEvent{
		Number:    issue.Number,
		Title:     issue.Title,
		State:     issue.State,
		Author:    r.resolver.Resolve(*issue.UserID),
		CreatedAt: issue.CreatedAt,
		URL:       r.webURL(repoName, "issues", strconv.Itoa(issue.Number)),
	})
	r.out.TotalIssues++
}

func (r *aggregation) finish() OrgAggregate {
	contributors := make([]Contributor, 0, len(r.contributors))
	for _, builder := range r.contributors {
		contributor := Contributor{
			Login:        builder.identity.Login,
			AvatarURL:    builder.identity.AvatarURL,
			Repositories: make([]RepositoryActivity, 0, len(builder.repos)),
		}
		for _, repo := range builder.repos {
			sortTimes(repo.CommitTimestamps)
			sortTimes(repo.PullRequestTimestamps)
			contributor.Repositories = append(contributor.Repositories, *repo)
		}
		sort.Slice(contributor.Repositories, func(i, j int) bool {
			return contributor.Repositories[i].Name < contributor.Repositories[j].Name
		})
		if contributor.TotalCommits() == 0 && contributor.TotalPullRequests() == 0 {
			continue
		}
		contributors = append(contributors, contributor)
	}
	sort.Slice(contributors, func(i, j int) bool {
		left, right := contributors[i].TotalContributions(), contributors[j].TotalContributions()
		if left != right {
			return left > right
		}
		return contributors[i].Login < contributors[j].Login
	})

	perRepository := make(map[string]*RepoRollup, len(r.rollups))
	for name, builder := range r.rollups {
		rollup := builder.rollup
		rollup.Contributors = make([]string, 0, len(builder.contributors))
		for login := range builder.contributors {
			rollup.Contributors = append(rollup.Contributors, login)
		}
		sort.Strings(rollup.Contributors)
		sort.SliceStable(rollup.CommitEvents, func(i, j int) bool {
			return rollup.CommitEvents[i].Timestamp.Before(rollup.CommitEvents[j].Timestamp)
		})
		sort.SliceStable(rollup.PullRequestEvents, func(i, j int) bool {
			return rollup.PullRequestEvents[i].MergedAt.Before(rollup.PullRequestEvents[j].MergedAt)
		})
		sort.SliceStable(rollup.IssueEvents, func(i, j int) bool {
			return rollup.IssueEvents[i].CreatedAt.Before(rollup.IssueEvents[j].CreatedAt)
		})
		perRepository[name] = rollup
	}

	r.out.Contributors = contributors
	r.out.UniqueContributors = len(contributors)
	r.out.PerRepository = perRepository
	return r.out
}

func (r *aggregation) repoName(id int64) string {
	if name, ok := r.repoNames[id]; ok && name != "" {
		return name
	}
	return "unknown-repo-" + strconv.FormatInt(id, 10)
}

func (r *aggregation) repoActivity(identity Identity, repoName string) *RepositoryActivity {
	builder, ok := r.contributors[identity.Login]
	if !ok {
		builder = &contributorBuilder{
			identity: identity,
			repos:    make(map[string]*RepositoryActivity),
		}
		r.contributors[identity.Login] = builder
	}
	if builder.identity.AvatarURL == "" && identity.AvatarURL != "" {
		builder.identity.AvatarURL = identity.AvatarURL
	}

	repo, ok := builder.repos[repoName]
	if !ok {
		repo = &RepositoryActivity{
			Name:                  repoName,
			CommitTimestamps:      []time.Time{},
			PullRequestTimestamps: []time.Time{},
		}
		builder.repos[repoName] = repo
	}
	return repo
}

func (r *aggregation) rollupFor(repoName string) *rollupBuilder {
	builder, ok := r.rollups[repoName]
	if !ok {
		builder = &rollupBuilder{
			rollup: &RepoRollup{
				Name:              repoName,
				CommitEvents:      []CommitEvent{},
				PullRequestEvents: []PullRequestEvent{},
				IssueEvents:       []IssueEvent{},
			},
			contributors: make(map[string]struct{}),
		}
		r.rollups[repoName] = builder
	}
	return builder
}

func (r *aggregation) webURL(repoName, kind, ref string) string {
	base := strings.TrimSuffix(r.agg.WebBaseURL, "/")
	if base == "" {
		base = defaultWebBaseURL
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", base, r.agg.Org, repoName, kind, ref)
}

func distinctIDs(ids ...*int64) []int64 {
	result := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		result = append(result, *id)
	}
	return result
}

func sortTimes(values []time.Time) {
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Before(values[j])
	})
}
