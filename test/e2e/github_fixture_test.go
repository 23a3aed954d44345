//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeGitHubAPI struct {
	mu sync.Mutex

	server *httptest.Server

	org       string
	repos     []fixtureRepository
	failures  map[string]int
	callCount map[string]int
}

type fixtureRepository struct {
	ID           int64
	Name         string
	Contributors []fixtureUser
	Commits      []fixtureCommit
	Pulls        []fixturePull
	Issues       []fixtureIssue
}

type fixtureUser struct {
	ID    int64
	Login string
}

type fixtureCommit struct {
	SHA         string
	Author      *fixtureUser
	CommittedAt time.Time
}

type fixturePull struct {
	Number    int
	User      fixtureUser
	MergedBy  *fixtureUser
	UpdatedAt time.Time
	MergedAt  time.Time
}

type fixtureIssue struct {
	Number      int
	Title       string
	User        fixtureUser
	CreatedAt   time.Time
	PullRequest bool
}

func newFakeGitHubAPI(t *testing.T, org string) *fakeGitHubAPI {
	t.Helper()

	fixture := &fakeGitHubAPI{
		org:       org,
		failures:  make(map[string]int),
		callCount: make(map[string]int),
	}
	fixture.server = httptest.NewServer(http.HandlerFunc(fixture.serveHTTP))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *fakeGitHubAPI) URL() string {
	return f.server.URL
}

func (f *fakeGitHubAPI) AddRepository(repo fixtureRepository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = append(f.repos, repo)
}

// FailPath answers the exact request path with status until cleared with 0.
func (f *fakeGitHubAPI) FailPath(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, path)
		return
	}
	f.failures[path] = status
}

func (f *fakeGitHubAPI) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[path]
}

func (f *fakeGitHubAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, count := range f.callCount {
		total += count
	}
	return total
}

func (f *fakeGitHubAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimSuffix(r.URL.Path, "/")
	f.callCount[path]++

	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(5000-f.totalLocked()))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))

	if status, ok := f.failures[path]; ok {
		writeFixtureJSON(w, status, map[string]string{"message": "fixture failure"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "orgs" && parts[1] == f.org && parts[2] == "repos":
		payload := make([]map[string]any, 0, len(f.repos))
		for _, repo := range f.repos {
			payload = append(payload, map[string]any{
				"id":        repo.ID,
				"name":      repo.Name,
				"full_name": f.org + "/" + repo.Name,
			})
		}
		writeFixtureJSON(w, http.StatusOK, payload)
	case len(parts) >= 4 && parts[0] == "repos" && parts[1] == f.org:
		repo, ok := f.repository(parts[2])
		if !ok {
			writeFixtureJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		f.serveRepository(w, repo, parts[3:])
	default:
		writeFixtureJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (f *fakeGitHubAPI) serveRepository(w http.ResponseWriter, repo fixtureRepository, resource []string) {
	switch {
	case len(resource) == 1 && resource[0] == "contributors":
		payload := make([]map[string]any, 0, len(repo.Contributors))
		for _, user := range repo.Contributors {
			payload = append(payload, userJSON(user))
		}
		writeFixtureJSON(w, http.StatusOK, payload)
	case len(resource) == 1 && resource[0] == "commits":
		payload := make([]map[string]any, 0, len(repo.Commits))
		for _, commit := range repo.Commits {
			entry := map[string]any{
				"sha":    commit.SHA,
				"author": nil,
				"commit": map[string]any{
					"author": map[string]any{"date": commit.CommittedAt.UTC().Format(time.RFC3339)},
				},
			}
			if commit.Author != nil {
				entry["author"] = userJSON(*commit.Author)
			}
			payload = append(payload, entry)
		}
		writeFixtureJSON(w, http.StatusOK, payload)
	case len(resource) == 1 && resource[0] == "pulls":
		payload := make([]map[string]any, 0, len(repo.Pulls))
		for _, pull := range repo.Pulls {
			payload = append(payload, pullJSON(pull, false))
		}
		writeFixtureJSON(w, http.StatusOK, payload)
	case len(resource) == 2 && resource[0] == "pulls":
		number, _ := strconv.Atoi(resource[1])
		for _, pull := range repo.Pulls {
			if pull.Number == number {
				writeFixtureJSON(w, http.StatusOK, pullJSON(pull, true))
				return
			}
		}
		writeFixtureJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	case len(resource) == 1 && resource[0] == "issues":
		payload := make([]map[string]any, 0, len(repo.Issues))
		for _, issue := range repo.Issues {
			entry := map[string]any{
				"number":     issue.Number,
				"title":      issue.Title,
				"state":      "open",
				"created_at": issue.CreatedAt.UTC().Format(time.RFC3339),
				"user":       userJSON(issue.User),
			}
			if issue.PullRequest {
				entry["pull_request"] = map[string]any{"url": "https://example.invalid/pull"}
			}
			payload = append(payload, entry)
		}
		writeFixtureJSON(w, http.StatusOK, payload)
	default:
		writeFixtureJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (f *fakeGitHubAPI) repository(name string) (fixtureRepository, bool) {
	for _, repo := range f.repos {
		if repo.Name == name {
			return repo, true
		}
	}
	return fixtureRepository{}, false
}

func (f *fakeGitHubAPI) totalLocked() int {
	total := 0
	for _, count := range f.callCount {
		total += count
	}
	return total
}

func userJSON(user fixtureUser) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"login":      user.Login,
		"avatar_url": "https://avatars.example.invalid/" + user.Login,
	}
}

// pullJSON renders a pull request. The list endpoint omits merged_by, as GitHub does.
func pullJSON(pull fixturePull, detailed bool) map[string]any {
	entry := map[string]any{
		"number":     pull.Number,
		"user":       userJSON(pull.User),
		"updated_at": pull.UpdatedAt.UTC().Format(time.RFC3339),
		"merged_at":  nil,
	}
	if !pull.MergedAt.IsZero() {
		entry["merged_at"] = pull.MergedAt.UTC().Format(time.RFC3339)
	}
	if detailed && pull.MergedBy != nil {
		entry["merged_by"] = userJSON(*pull.MergedBy)
	}
	return entry
}

func writeFixtureJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
