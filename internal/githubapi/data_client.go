package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/activity"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusAccepted indicates GitHub accepted the request and is still computing results.
	EndpointStatusAccepted EndpointStatus = "accepted"
	// EndpointStatusForbidden indicates authorization failure or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusConflict indicates a state conflict, like listing commits of an empty repository.
	EndpointStatusConflict EndpointStatus = "conflict"
	// EndpointStatusUnprocessable indicates request validation/processing failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// Repository is one GitHub repository in an organization.
type Repository struct {
	ID       int64
	Name     string
	FullName string
	Archived bool
	Fork     bool
}

// Listing returns the id-to-name mapping used by the aggregator.
func (r Repository) Listing() activity.RepositoryListing {
	return activity.RepositoryListing{ID: r.ID, Name: r.Name}
}

// OrgReposResult is the typed result for listing organization repositories.
type OrgReposResult struct {
	Status   EndpointStatus
	Repos    []Repository
	Metadata CallMetadata
}

// ContributorsResult is the typed result for listing repository contributors.
type ContributorsResult struct {
	Status       EndpointStatus
	Contributors []activity.ContributorListing
	Metadata     CallMetadata
}

// CommitsResult is the typed result for listing repository commits.
type CommitsResult struct {
	Status   EndpointStatus
	Commits  []activity.CommitRecord
	Metadata CallMetadata
}

// PullRequestsResult is the typed result for listing closed pull requests.
type PullRequestsResult struct {
	Status       EndpointStatus
	PullRequests []activity.PullRequestRecord
	Metadata     CallMetadata
}

// IssuesResult is the typed result for listing repository issues.
type IssuesResult struct {
	Status   EndpointStatus
	Issues   []activity.IssueRecord
	Metadata CallMetadata
}

// DataClient is a typed GitHub REST data client for the activity endpoints.
//
// Every list method follows Link pagination and narrows the raw payload into
// activity records. Null actor ids stay nil so the aggregator can skip them.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
}

// NewDataClient creates a typed data client over the generic retry/rate-limit request client.
func NewDataClient(baseURL string, requestClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// ListOrgRepos lists repositories in one GitHub organization.
func (c *DataClient) ListOrgRepos(ctx context.Context, org string) (OrgReposResult, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return OrgReposResult{}, fmt.Errorf("organization is required")
	}

	query := url.Values{}
	query.Set("type", "all")

	result := OrgReposResult{}
	status, metadata, err := listPages(ctx, c, "list org repos",
		[]string{"orgs", url.PathEscape(trimmedOrg), "repos"}, query,
		func(page []repositoryPayload) bool {
			for _, repo := range page {
				result.Repos = append(result.Repos, Repository(repo))
			}
			return true
		})
	result.Status, result.Metadata = status, metadata
	return result, err
}

// ListRepoContributors lists the commit contributors of one repository.
// Anonymous contributors have no account id and are dropped.
func (c *DataClient) ListRepoContributors(ctx context.Context, owner, repo string) (ContributorsResult, error) {
	segments, err := repoSegments(owner, repo, "contributors")
	if err != nil {
		return ContributorsResult{}, err
	}

	result := ContributorsResult{}
	status, metadata, err := listPages(ctx, c, "list repo contributors", segments, nil,
		func(page []userPayload) bool {
			for _, user := range page {
				if user.ID == nil || strings.TrimSpace(user.Login) == "" {
					continue
				}
				result.Contributors = append(result.Contributors, user.listing())
			}
			return true
		})
	result.Status, result.Metadata = status, metadata
	return result, err
}

// ListRepoCommits lists commits on the default branch, optionally since a time.
func (c *DataClient) ListRepoCommits(ctx context.Context, owner, repo string, repoID int64, since time.Time) (CommitsResult, error) {
	segments, err := repoSegments(owner, repo, "commits")
	if err != nil {
		return CommitsResult{}, err
	}

	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	result := CommitsResult{}
	status, metadata, err := listPages(ctx, c, "list repo commits", segments, query,
		func(page []commitPayload) bool {
			for _, commit := range page {
				result.Commits = append(result.Commits, activity.CommitRecord{
					RepoID:      activity.ID(repoID),
					AuthorID:    commit.Author.id(),
					CommitterID: commit.Committer.id(),
					SHA:         commit.SHA,
					Timestamp:   parseRFC3339(commit.Commit.Author.Date),
				})
			}
			return true
		})
	result.Status, result.Metadata = status, metadata
	return result, err
}

// ListRepoPullRequests lists closed pull requests, newest update first. With a
// non-zero since, paging stops once pull requests were last updated before it.
// Merger ids are not part of this payload.
func (c *DataClient) ListRepoPullRequests(ctx context.Context, owner, repo string, repoID int64, since time.Time) (PullRequestsResult, error) {
	segments, err := repoSegments(owner, repo, "pulls")
	if err != nil {
		return PullRequestsResult{}, err
	}

	query := url.Values{}
	query.Set("state", "closed")
	query.Set("sort", "updated")
	query.Set("direction", "desc")

	result := PullRequestsResult{}
	status, metadata, err := listPages(ctx, c, "list repo pull requests", segments, query,
		func(page []pullRequestPayload) bool {
			for _, pr := range page {
				if !since.IsZero() && parseRFC3339(pr.UpdatedAt).Before(since) {
					return false
				}
				record := activity.PullRequestRecord{
					RepoID: activity.ID(repoID),
					UserID: pr.User.id(),
					Number: pr.Number,
				}
				if merged := parseNullableRFC3339(pr.MergedAt); !merged.IsZero() {
					record.MergedAt = activity.Time(merged)
				}
				result.PullRequests = append(result.PullRequests, record)
			}
			return true
		})
	result.Status, result.Metadata = status, metadata
	return result, err
}

// ListRepoIssues lists issues in every state. The issues endpoint also returns
// pull requests; those are filtered out.
func (c *DataClient) ListRepoIssues(ctx context.Context, owner, repo string, repoID int64, since time.Time) (IssuesResult, error) {
	segments, err := repoSegments(owner, repo, "issues")
	if err != nil {
		return IssuesResult{}, err
	}

	query := url.Values{}
	query.Set("state", "all")
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	result := IssuesResult{}
	status, metadata, err := listPages(ctx, c, "list repo issues", segments, query,
		func(page []issuePayload) bool {
			for _, issue := range page {
				if issue.PullRequest != nil {
					continue
				}
				result.Issues = append(result.Issues, activity.IssueRecord{
					RepoID:    activity.ID(repoID),
					UserID:    issue.User.id(),
					Number:    issue.Number,
					Title:     issue.Title,
					State:     issue.State,
					CreatedAt: parseRFC3339(issue.CreatedAt),
				})
			}
			return true
		})
	result.Status, result.Metadata = status, metadata
	return result, err
}

// listPages walks Link pagination for one list endpoint, handing each decoded
// page to visit until visit returns false or no next page remains. A non-OK
// status ends the walk without an error; 204 No Content is an empty listing.
func listPages[T any](
	ctx context.Context,
	c *DataClient,
	operation string,
	segments []string,
	query url.Values,
	visit func(page []T) bool,
) (EndpointStatus, CallMetadata, error) {
	var metadata CallMetadata
	for page := 1; ; page++ {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, segments...)
		values := url.Values{}
		for key, entries := range query {
			values[key] = append([]string(nil), entries...)
		}
		values.Set("per_page", "100")
		values.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = values.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return "", metadata, fmt.Errorf("build %s request: %w", operation, err)
		}

		resp, callMetadata, err := c.requestClient.Do(req)
		metadata = mergeMetadata(metadata, callMetadata)
		if err != nil {
			return "", metadata, fmt.Errorf("%s request failed: %w", operation, err)
		}
		if resp == nil {
			return "", metadata, fmt.Errorf("%s request failed: nil response", operation)
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK || resp.StatusCode == http.StatusNoContent {
			_ = resp.Body.Close()
			return status, metadata, nil
		}

		var payload []T
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return "", metadata, fmt.Errorf("decode %s response: %w", operation, err)
		}
		if !visit(payload) || len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			return EndpointStatusOK, metadata, nil
		}
	}
}

func repoSegments(owner, repo, resource string) ([]string, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return nil, fmt.Errorf("repo is required")
	}
	return []string{"repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), resource}, nil
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.TrimSuffix(base, "/"))
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusAccepted:
		return EndpointStatusAccepted
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusConflict:
		return EndpointStatusConflict
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

func hasNextPage(linkHeader string) bool {
	for _, part := range strings.Split(linkHeader, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullableRFC3339(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	return parseRFC3339(*raw)
}

func mergeMetadata(current CallMetadata, incoming CallMetadata) CallMetadata {
	current.Attempts += incoming.Attempts
	current.LastDecision = incoming.LastDecision
	current.LastRateHeaders = incoming.LastRateHeaders
	return current
}

type repositoryPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
}

type userPayload struct {
	ID        *int64 `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

func (u *userPayload) id() *int64 {
	if u == nil {
		return nil
	}
	return u.ID
}

func (u *userPayload) listing() activity.ContributorListing {
	return activity.ContributorListing{ID: *u.ID, Login: u.Login, AvatarURL: u.AvatarURL}
}

type commitPayload struct {
	SHA       string       `json:"sha"`
	Author    *userPayload `json:"author"`
	Committer *userPayload `json:"committer"`
	Commit    struct {
		Author struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type pullRequestPayload struct {
	Number    int          `json:"number"`
	User      *userPayload `json:"user"`
	UpdatedAt string       `json:"updated_at"`
	MergedAt  *string      `json:"merged_at"`
}

type issuePayload struct {
	Number      int          `json:"number"`
	Title       string       `json:"title"`
	State       string       `json:"state"`
	CreatedAt   string       `json:"created_at"`
	User        *userPayload `json:"user"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}
