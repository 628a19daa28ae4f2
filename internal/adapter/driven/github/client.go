// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
// A Client is bound to one token for its whole lifetime; credential rotation
// is handled upstream by constructing a replacement.
type Client struct {
	gh           *gh.Client
	username     string // Login hint from the credential source; may be empty.
	installation bool   // True when the token is a GitHub App installation token.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
//
// installationID is zero for personal access tokens.
func NewClient(token, username string, installationID int64) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:           client,
		username:     username,
		installation: installationID != 0,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username string, installation bool) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	return &Client{
		gh:           client,
		username:     username,
		installation: installation,
	}, nil
}

// AuthenticatedUser returns the login behind the bound token. Installation
// tokens cannot call /user, so the first accessible repository's owner is
// used instead.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	if !c.installation {
		user, resp, err := c.gh.Users.Get(ctx, "")
		if err != nil {
			return "", fmt.Errorf("fetching authenticated user: %w", err)
		}
		logRateLimit(resp, "user", 0, 1)
		return user.GetLogin(), nil
	}

	repos, err := c.ListRepositories(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("resolving installation owner: %w", err)
	}
	if len(repos) > 0 {
		return repos[0].Owner, nil
	}
	if c.username != "" {
		return c.username, nil
	}
	return "", fmt.Errorf("installation has no accessible repositories")
}

// ListRepositories retrieves repositories accessible to the bound token,
// most recently updated first. Installation tokens are routed through the
// installation repositories endpoint; they cannot list user repositories.
func (c *Client) ListRepositories(ctx context.Context, limit int) ([]model.Repository, error) {
	if limit <= 0 {
		limit = 20
	}

	var all []model.Repository

	if c.installation {
		opts := &gh.ListOptions{PerPage: min(limit, 100)}
		for {
			result, resp, err := c.gh.Apps.ListRepos(ctx, opts)
			if err != nil {
				return nil, fmt.Errorf("listing installation repositories (page %d): %w", opts.Page, err)
			}
			logRateLimit(resp, "installation/repositories", opts.Page, len(result.Repositories))

			for _, r := range result.Repositories {
				all = append(all, mapRepository(r))
				if len(all) >= limit {
					return all, nil
				}
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return all, nil
	}

	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: min(limit, 100)},
	}
	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories (page %d): %w", opts.Page, err)
		}
		logRateLimit(resp, "user/repos", opts.Page, len(repos))

		for _, r := range repos {
			all = append(all, mapRepository(r))
			if len(all) >= limit {
				return all, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetRepository retrieves a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*model.Repository, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}
	logRateLimit(resp, owner+"/"+repo, 0, 1)

	mapped := mapRepository(r)
	return &mapped, nil
}

// ListPullRequests retrieves pull requests filtered by state ("open",
// "closed", or "all"), most recently updated first, as lightweight summaries.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string, limit int) ([]model.PullRequestSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if state == "" {
		state = "open"
	}

	opts := &gh.PullRequestListOptions{
		State:     state,
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: min(limit, 100),
		},
	}

	var all []model.PullRequestSummary

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s/%s (page %d): %w", owner, repo, opts.Page, err)
		}
		logRateLimit(resp, owner+"/"+repo+"/pulls", opts.Page, len(prs))

		for _, pr := range prs {
			all = append(all, mapPullRequestSummary(pr))
			if len(all) >= limit {
				return all, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []model.PullRequestSummary{}
	}
	return all, nil
}

// GetPullRequest retrieves a single pull request with full detail.
// Returns nil, nil when the PR does not exist.
func (c *Client) GetPullRequest(ctx context.Context, ref model.PRRef) (*model.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching PR %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Number, err)
	}
	logRateLimit(resp, fmt.Sprintf("%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number), 0, 1)

	mapped := mapPullRequest(pr, ref.Owner, ref.Repo)
	return &mapped, nil
}

// ListCommits retrieves commit summaries, optionally filtered by starting
// ref, author, and date.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, filter driven.CommitFilter, limit int) ([]model.CommitSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := &gh.CommitsListOptions{
		SHA:         filter.SHA,
		Author:      filter.Author,
		ListOptions: gh.ListOptions{PerPage: min(limit, 100)},
	}
	if filter.Since != "" {
		since, err := time.Parse(time.RFC3339, filter.Since)
		if err != nil {
			// Accept bare dates as well.
			since, err = time.Parse("2006-01-02", filter.Since)
			if err != nil {
				return nil, fmt.Errorf("invalid since value %q: expected RFC 3339 or YYYY-MM-DD", filter.Since)
			}
		}
		opts.Since = since
	}

	var all []model.CommitSummary

	for {
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing commits for %s/%s (page %d): %w", owner, repo, opts.Page, err)
		}
		logRateLimit(resp, owner+"/"+repo+"/commits", opts.Page, len(commits))

		for _, commit := range commits {
			all = append(all, mapCommitSummary(commit))
			if len(all) >= limit {
				return all, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// maxCommitFiles bounds the per-file list in GetCommit responses.
const maxCommitFiles = 30

// maxPatchBytes bounds each file's inline diff in GetCommit responses.
const maxPatchBytes = 1000

// GetCommit retrieves one commit with stats and truncated per-file patches.
// Returns nil, nil when the SHA does not exist.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*model.CommitDetail, error) {
	commit, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching commit %s/%s@%s: %w", owner, repo, sha, err)
	}
	logRateLimit(resp, owner+"/"+repo+"/commit", 0, 1)

	detail := &model.CommitDetail{
		SHA:     commit.GetSHA(),
		Message: commit.GetCommit().GetMessage(),
		Author:  commitAuthor(commit),
		Date:    commit.GetCommit().GetAuthor().GetDate().Time,
		URL:     commit.GetHTMLURL(),
	}
	if stats := commit.GetStats(); stats != nil {
		detail.Additions = stats.GetAdditions()
		detail.Deletions = stats.GetDeletions()
		detail.Total = stats.GetTotal()
	}

	for i, f := range commit.Files {
		if i >= maxCommitFiles {
			break
		}
		patch := f.GetPatch()
		if len(patch) > maxPatchBytes {
			patch = patch[:maxPatchBytes]
		}
		detail.Files = append(detail.Files, model.CommitFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     patch,
		})
	}

	return detail, nil
}

// ListBranches retrieves repository branches.
func (c *Client) ListBranches(ctx context.Context, owner, repo string, limit int) ([]model.Branch, error) {
	if limit <= 0 {
		limit = 30
	}

	opts := &gh.BranchListOptions{
		ListOptions: gh.ListOptions{PerPage: min(limit, 100)},
	}

	var all []model.Branch

	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing branches for %s/%s (page %d): %w", owner, repo, opts.Page, err)
		}
		logRateLimit(resp, owner+"/"+repo+"/branches", opts.Page, len(branches))

		for _, b := range branches {
			all = append(all, model.Branch{
				Name:      b.GetName(),
				SHA:       b.GetCommit().GetSHA(),
				Protected: b.GetProtected(),
			})
			if len(all) >= limit {
				return all, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string, labels, assignees []string) (*model.Issue, error) {
	req := &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	if len(assignees) > 0 {
		req.Assignees = &assignees
	}

	issue, resp, err := c.gh.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s/%s: %w", owner, repo, err)
	}
	logRateLimit(resp, owner+"/"+repo+"/issues", 0, 1)

	mapped := mapIssue(issue)
	return &mapped, nil
}

// UpdateIssue edits an existing issue. Nil fields in changes are untouched.
func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, changes model.IssueChanges) (*model.Issue, error) {
	req := &gh.IssueRequest{}
	if changes.Title != nil {
		req.Title = changes.Title
	}
	if changes.Body != nil {
		req.Body = changes.Body
	}
	if changes.Labels != nil {
		req.Labels = changes.Labels
	}
	if changes.Assignees != nil {
		req.Assignees = changes.Assignees
	}

	issue, resp, err := c.gh.Issues.Edit(ctx, owner, repo, number, req)
	if err != nil {
		return nil, fmt.Errorf("updating issue %s/%s#%d: %w", owner, repo, number, err)
	}
	logRateLimit(resp, fmt.Sprintf("%s/%s/issues/%d", owner, repo, number), 0, 1)

	mapped := mapIssue(issue)
	return &mapped, nil
}

// SetIssueState closes or reopens an issue. state must be "open" or "closed".
func (c *Client) SetIssueState(ctx context.Context, owner, repo string, number int, state string) (*model.Issue, error) {
	if state != "open" && state != "closed" {
		return nil, fmt.Errorf("invalid issue state %q: expected open or closed", state)
	}

	issue, resp, err := c.gh.Issues.Edit(ctx, owner, repo, number, &gh.IssueRequest{State: gh.Ptr(state)})
	if err != nil {
		return nil, fmt.Errorf("setting issue %s/%s#%d state to %s: %w", owner, repo, number, state, err)
	}
	logRateLimit(resp, fmt.Sprintf("%s/%s/issues/%d", owner, repo, number), 0, 1)

	mapped := mapIssue(issue)
	return &mapped, nil
}

// CommentOnIssue adds a comment to an issue or pull request.
func (c *Client) CommentOnIssue(ctx context.Context, owner, repo string, number int, body string) (*model.IssueComment, error) {
	comment, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return nil, fmt.Errorf("commenting on %s/%s#%d: %w", owner, repo, number, err)
	}
	logRateLimit(resp, fmt.Sprintf("%s/%s/issues/%d/comments", owner, repo, number), 0, 1)

	return &model.IssueComment{
		ID:          comment.GetID(),
		IssueNumber: number,
		Body:        comment.GetBody(),
		URL:         comment.GetHTMLURL(),
		CreatedAt:   comment.GetCreatedAt().Time,
	}, nil
}

// SearchMergedPRs finds merged pull requests via the GitHub Search API.
// Repo takes precedence over Org when both are set in the query.
func (c *Client) SearchMergedPRs(ctx context.Context, query driven.MergedPRQuery) ([]model.MergedPR, error) {
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	parts := []string{"is:pr", "is:merged"}
	if query.Author != "" {
		parts = append(parts, "author:"+query.Author)
	}
	if query.SinceDate != "" {
		parts = append(parts, "merged:>="+query.SinceDate)
	}
	if query.Repo != "" {
		parts = append(parts, "repo:"+query.Repo)
	} else if query.Org != "" {
		parts = append(parts, "org:"+query.Org)
	}

	opts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, resp, err := c.gh.Search.Issues(ctx, strings.Join(parts, " "), opts)
	if err != nil {
		return nil, fmt.Errorf("searching merged PRs: %w", err)
	}
	logRateLimit(resp, "search/issues", 0, len(result.Issues))

	prs := make([]model.MergedPR, 0, len(result.Issues))
	for _, item := range result.Issues {
		if len(prs) >= limit {
			break
		}
		owner, repo := splitRepositoryURL(item.GetRepositoryURL())

		labels := make([]string, 0, len(item.Labels))
		for _, l := range item.Labels {
			labels = append(labels, l.GetName())
		}

		pr := model.MergedPR{
			Number: item.GetNumber(),
			Title:  item.GetTitle(),
			Body:   item.GetBody(),
			Owner:  owner,
			Repo:   repo,
			Author: item.GetUser().GetLogin(),
			URL:    item.GetHTMLURL(),
			Labels: labels,
		}
		if links := item.GetPullRequestLinks(); links != nil && links.MergedAt != nil {
			mergedAt := links.MergedAt.Time
			pr.MergedAt = &mergedAt
		}
		prs = append(prs, pr)
	}

	return prs, nil
}

// mapRepository converts a go-github Repository to a domain model Repository.
func mapRepository(r *gh.Repository) model.Repository {
	defaultBranch := r.GetDefaultBranch()
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return model.Repository{
		Name:          r.GetName(),
		Owner:         r.GetOwner().GetLogin(),
		FullName:      r.GetFullName(),
		URL:           r.GetHTMLURL(),
		Description:   r.GetDescription(),
		DefaultBranch: defaultBranch,
		Private:       r.GetPrivate(),
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, owner, repo string) model.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	reviewers := make([]string, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	mapped := model.PullRequest{
		Number:       pr.GetNumber(),
		Owner:        owner,
		Repo:         repo,
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		Author:       pr.GetUser().GetLogin(),
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
		URL:          pr.GetHTMLURL(),
		HeadBranch:   pr.GetHead().GetRef(),
		BaseBranch:   pr.GetBase().GetRef(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Commits:      pr.GetCommits(),
		Draft:        pr.GetDraft(),
		Mergeable:    pr.Mergeable,
		Labels:       labels,
		Reviewers:    reviewers,
	}
	if !pr.GetMergedAt().IsZero() {
		mergedAt := pr.GetMergedAt().Time
		mapped.MergedAt = &mergedAt
	}
	return mapped
}

// mapPullRequestSummary converts a go-github PullRequest to a summary.
func mapPullRequestSummary(pr *gh.PullRequest) model.PullRequestSummary {
	summary := model.PullRequestSummary{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
		URL:       pr.GetHTMLURL(),
	}
	if !pr.GetMergedAt().IsZero() {
		mergedAt := pr.GetMergedAt().Time
		summary.MergedAt = &mergedAt
	}
	return summary
}

// shortSHALen is the abbreviated SHA length used in commit summaries.
const shortSHALen = 7

// maxMessageTitleLen bounds the first message line in commit summaries.
const maxMessageTitleLen = 100

// mapCommitSummary converts a go-github RepositoryCommit to a summary with
// a short SHA and the first message line only.
func mapCommitSummary(commit *gh.RepositoryCommit) model.CommitSummary {
	sha := commit.GetSHA()
	if len(sha) > shortSHALen {
		sha = sha[:shortSHALen]
	}

	title := commit.GetCommit().GetMessage()
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	if len(title) > maxMessageTitleLen {
		title = title[:maxMessageTitleLen]
	}

	return model.CommitSummary{
		SHA:          sha,
		MessageTitle: title,
		Author:       commitAuthor(commit),
		Date:         commit.GetCommit().GetAuthor().GetDate().Time,
		URL:          commit.GetHTMLURL(),
	}
}

// commitAuthor prefers the GitHub login over the git author name.
func commitAuthor(commit *gh.RepositoryCommit) string {
	if login := commit.GetAuthor().GetLogin(); login != "" {
		return login
	}
	if name := commit.GetCommit().GetAuthor().GetName(); name != "" {
		return name
	}
	return "unknown"
}

// mapIssue converts a go-github Issue to a domain model Issue.
func mapIssue(issue *gh.Issue) model.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return model.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		URL:       issue.GetHTMLURL(),
		Labels:    labels,
		Assignees: assignees,
		CreatedAt: issue.GetCreatedAt().Time,
	}
}

// splitRepositoryURL extracts owner and repo from a search result's
// repository_url ("https://api.github.com/repos/owner/repo").
func splitRepositoryURL(repoURL string) (string, string) {
	parts := strings.Split(strings.TrimSuffix(repoURL, "/"), "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
