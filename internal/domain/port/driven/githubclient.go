package driven

import (
	"context"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// CommitFilter narrows ListCommits results. Zero values mean "no filter".
type CommitFilter struct {
	SHA    string // Branch name or commit SHA to start from.
	Author string
	Since  string // ISO date; only commits after this instant.
}

// MergedPRQuery describes a merged-PR search. Repo takes precedence over
// Org when both are set.
type MergedPRQuery struct {
	Author    string
	SinceDate string // YYYY-MM-DD
	Org       string
	Repo      string // owner/repo
	Limit     int
}

// GitHubClient is the driven port for the GitHub API. Implementations are
// bound to a single credential at construction time and are never rebound;
// credential rotation produces a new client.
type GitHubClient interface {
	// AuthenticatedUser returns the login of the token's user, or the
	// installation owner when the token is a GitHub App installation token.
	AuthenticatedUser(ctx context.Context) (string, error)

	ListRepositories(ctx context.Context, limit int) ([]model.Repository, error)
	GetRepository(ctx context.Context, owner, repo string) (*model.Repository, error)

	ListPullRequests(ctx context.Context, owner, repo, state string, limit int) ([]model.PullRequestSummary, error)
	// GetPullRequest returns nil, nil when the PR does not exist.
	GetPullRequest(ctx context.Context, ref model.PRRef) (*model.PullRequest, error)

	ListCommits(ctx context.Context, owner, repo string, filter CommitFilter, limit int) ([]model.CommitSummary, error)
	// GetCommit returns nil, nil when the SHA does not exist.
	GetCommit(ctx context.Context, owner, repo, sha string) (*model.CommitDetail, error)

	ListBranches(ctx context.Context, owner, repo string, limit int) ([]model.Branch, error)

	CreateIssue(ctx context.Context, owner, repo, title, body string, labels, assignees []string) (*model.Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, changes model.IssueChanges) (*model.Issue, error)
	SetIssueState(ctx context.Context, owner, repo string, number int, state string) (*model.Issue, error)
	CommentOnIssue(ctx context.Context, owner, repo string, number int, body string) (*model.IssueComment, error)

	SearchMergedPRs(ctx context.Context, query MergedPRQuery) ([]model.MergedPR, error)
}
