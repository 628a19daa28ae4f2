package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/devlinkhq/devlink/internal/adapter/driven/github"
	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(
		server.Client(),
		server.URL+"/",
		"testuser",
		false,
	)
	require.NoError(t, err)

	return client
}

type userJSON struct {
	Login string `json:"login"`
}

type refJSON struct {
	Ref string `json:"ref"`
	SHA string `json:"sha,omitempty"`
}

type lblJSON struct {
	Name string `json:"name"`
}

type prJSON struct {
	Number   int       `json:"number"`
	Title    string    `json:"title"`
	Body     string    `json:"body,omitempty"`
	State    string    `json:"state"`
	Draft    bool      `json:"draft"`
	HTMLURL  string    `json:"html_url"`
	User     userJSON  `json:"user"`
	Head     refJSON   `json:"head"`
	Base     refJSON   `json:"base"`
	Labels   []lblJSON `json:"labels"`
	Created  string    `json:"created_at"`
	Updated  string    `json:"updated_at"`
	MergedAt *string   `json:"merged_at,omitempty"`

	Additions    int `json:"additions,omitempty"`
	Deletions    int `json:"deletions,omitempty"`
	ChangedFiles int `json:"changed_files,omitempty"`
	Commits      int `json:"commits,omitempty"`
}

func TestListPullRequests(t *testing.T) {
	prs := []prJSON{
		{
			Number:  42,
			Title:   "Add feature X",
			State:   "open",
			HTMLURL: "https://github.com/owner/repo/pull/42",
			User:    userJSON{Login: "alice"},
			Head:    refJSON{Ref: "feature-x"},
			Base:    refJSON{Ref: "main"},
			Created: "2026-01-01T00:00:00Z",
			Updated: "2026-01-02T12:00:00Z",
		},
		{
			Number:  43,
			Title:   "Fix bug Y",
			State:   "open",
			HTMLURL: "https://github.com/owner/repo/pull/43",
			User:    userJSON{Login: "bob"},
			Head:    refJSON{Ref: "fix-bug-y"},
			Base:    refJSON{Ref: "develop"},
			Created: "2026-01-03T00:00:00Z",
			Updated: "2026-01-04T00:00:00Z",
		},
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/owner/repo/pulls", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(prs)
	}))

	result, err := client.ListPullRequests(context.Background(), "owner", "repo", "open", 20)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, 42, result[0].Number)
	assert.Equal(t, "Add feature X", result[0].Title)
	assert.Equal(t, "alice", result[0].Author)
	assert.Equal(t, "https://github.com/owner/repo/pull/42", result[0].URL)
	assert.Nil(t, result[0].MergedAt)
	assert.Equal(t, 43, result[1].Number)
}

func TestListPullRequests_LimitStopsPagination(t *testing.T) {
	prs := make([]prJSON, 5)
	for i := range prs {
		prs[i] = prJSON{
			Number:  i + 1,
			Title:   "PR",
			State:   "open",
			User:    userJSON{Login: "alice"},
			Created: "2026-01-01T00:00:00Z",
			Updated: "2026-01-01T00:00:00Z",
		}
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(prs)
	}))

	result, err := client.ListPullRequests(context.Background(), "owner", "repo", "open", 3)
	require.NoError(t, err)
	assert.Len(t, result, 3)
}

func TestGetPullRequest_FullDetail(t *testing.T) {
	merged := "2026-02-01T10:00:00Z"
	pr := prJSON{
		Number:       7,
		Title:        "Ship it",
		Body:         "Long description",
		State:        "closed",
		HTMLURL:      "https://github.com/owner/repo/pull/7",
		User:         userJSON{Login: "carol"},
		Head:         refJSON{Ref: "ship"},
		Base:         refJSON{Ref: "main"},
		Labels:       []lblJSON{{Name: "release"}},
		Created:      "2026-01-20T00:00:00Z",
		Updated:      "2026-02-01T10:00:00Z",
		MergedAt:     &merged,
		Additions:    120,
		Deletions:    30,
		ChangedFiles: 6,
		Commits:      4,
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/owner/repo/pulls/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pr)
	}))

	result, err := client.GetPullRequest(context.Background(), model.PRRef{Owner: "owner", Repo: "repo", Number: 7})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Ship it", result.Title)
	assert.Equal(t, "owner", result.Owner)
	assert.Equal(t, "repo", result.Repo)
	assert.Equal(t, 120, result.Additions)
	assert.Equal(t, 30, result.Deletions)
	assert.Equal(t, 6, result.ChangedFiles)
	assert.Equal(t, []string{"release"}, result.Labels)
	require.NotNil(t, result.MergedAt)
}

func TestGetPullRequest_NotFoundReturnsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))

	result, err := client.GetPullRequest(context.Background(), model.PRRef{Owner: "owner", Repo: "repo", Number: 999})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestListRepositories(t *testing.T) {
	repos := []map[string]any{
		{
			"name":           "tool",
			"full_name":      "alice/tool",
			"html_url":       "https://github.com/alice/tool",
			"default_branch": "main",
			"private":        true,
			"owner":          userJSON{Login: "alice"},
		},
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/repos", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(repos)
	}))

	result, err := client.ListRepositories(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "alice/tool", result[0].FullName)
	assert.Equal(t, "alice", result[0].Owner)
	assert.True(t, result[0].Private)
}

func TestListCommits_SummaryMapping(t *testing.T) {
	commits := []map[string]any{
		{
			"sha":      "abcdef1234567890",
			"html_url": "https://github.com/owner/repo/commit/abcdef1",
			"commit": map[string]any{
				"message": "Fix the widget\n\nLonger explanation.",
				"author": map[string]any{
					"name": "Alice Dev",
					"date": "2026-03-01T09:00:00Z",
				},
			},
			"author": userJSON{Login: "alice"},
		},
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/owner/repo/commits", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(commits)
	}))

	result, err := client.ListCommits(context.Background(), "owner", "repo", driven.CommitFilter{}, 20)
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Equal(t, "abcdef1", result[0].SHA, "summary uses short SHA")
	assert.Equal(t, "Fix the widget", result[0].MessageTitle, "summary keeps first line only")
	assert.Equal(t, "alice", result[0].Author, "login preferred over git author name")
}

func TestSearchMergedPRs_BuildsQueryAndParsesRepo(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/issues", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total_count": 1,
			"items": [{
				"number": 12,
				"title": "Refactor pipeline",
				"html_url": "https://github.com/acme/pipeline/pull/12",
				"repository_url": "https://api.github.com/repos/acme/pipeline",
				"user": {"login": "alice"},
				"labels": [{"name": "infra"}],
				"pull_request": {"merged_at": "2026-04-01T00:00:00Z"}
			}]
		}`))
	}))

	result, err := client.SearchMergedPRs(context.Background(), driven.MergedPRQuery{
		Author:    "alice",
		SinceDate: "2026-01-01",
		Org:       "acme",
	})
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Contains(t, gotQuery, "is:pr")
	assert.Contains(t, gotQuery, "is:merged")
	assert.Contains(t, gotQuery, "author:alice")
	assert.Contains(t, gotQuery, "merged:>=2026-01-01")
	assert.Contains(t, gotQuery, "org:acme")

	assert.Equal(t, "acme", result[0].Owner)
	assert.Equal(t, "pipeline", result[0].Repo)
	assert.Equal(t, []string{"infra"}, result[0].Labels)
	require.NotNil(t, result[0].MergedAt)
}

func TestSearchMergedPRs_RepoOverridesOrg(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_count": 0, "items": []}`))
	}))

	_, err := client.SearchMergedPRs(context.Background(), driven.MergedPRQuery{
		Repo: "acme/pipeline",
		Org:  "acme",
	})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "repo:acme/pipeline")
	assert.NotContains(t, gotQuery, "org:acme")
}

func TestCreateIssue(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/repos/owner/repo/issues", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Broken build", body["title"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"number": 5,
			"title": "Broken build",
			"state": "open",
			"html_url": "https://github.com/owner/repo/issues/5",
			"created_at": "2026-05-01T00:00:00Z"
		}`))
	}))

	issue, err := client.CreateIssue(context.Background(), "owner", "repo", "Broken build", "details", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, issue.Number)
	assert.Equal(t, "open", issue.State)
}

func TestSetIssueState_RejectsUnknownState(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for invalid state")
	}))

	_, err := client.SetIssueState(context.Background(), "owner", "repo", 1, "archived")
	require.Error(t, err)
}
