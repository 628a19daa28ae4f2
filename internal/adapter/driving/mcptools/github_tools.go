package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devlinkhq/devlink/internal/application"
	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

type listReposInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of repositories to return (default 20)"`
}

type listReposOutput struct {
	Repositories []model.Repository `json:"repositories"`
}

type repoInput struct {
	Owner string `json:"owner" jsonschema:"repository owner"`
	Repo  string `json:"repo" jsonschema:"repository name"`
}

type listPRsInput struct {
	Owner string `json:"owner" jsonschema:"repository owner"`
	Repo  string `json:"repo" jsonschema:"repository name"`
	State string `json:"state,omitempty" jsonschema:"open, closed, or all (default open)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of pull requests (default 20)"`
}

type listPRsOutput struct {
	PullRequests []model.PullRequestSummary `json:"pull_requests"`
}

type getPRInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	Number int    `json:"number" jsonschema:"pull request number"`
}

type listCommitsInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	SHA    string `json:"sha,omitempty" jsonschema:"branch name or commit SHA to start from"`
	Author string `json:"author,omitempty" jsonschema:"filter by author login"`
	Since  string `json:"since,omitempty" jsonschema:"only commits after this date (RFC 3339 or YYYY-MM-DD)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of commits (default 20)"`
}

type listCommitsOutput struct {
	Commits []model.CommitSummary `json:"commits"`
}

type getCommitInput struct {
	Owner string `json:"owner" jsonschema:"repository owner"`
	Repo  string `json:"repo" jsonschema:"repository name"`
	SHA   string `json:"sha" jsonschema:"commit SHA"`
}

type listBranchesInput struct {
	Owner string `json:"owner" jsonschema:"repository owner"`
	Repo  string `json:"repo" jsonschema:"repository name"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of branches (default 30)"`
}

type listBranchesOutput struct {
	Branches []model.Branch `json:"branches"`
}

type createIssueInput struct {
	Owner     string   `json:"owner" jsonschema:"repository owner"`
	Repo      string   `json:"repo" jsonschema:"repository name"`
	Title     string   `json:"title" jsonschema:"issue title"`
	Body      string   `json:"body,omitempty" jsonschema:"issue body"`
	Labels    []string `json:"labels,omitempty" jsonschema:"labels to apply"`
	Assignees []string `json:"assignees,omitempty" jsonschema:"logins to assign"`
}

type updateIssueInput struct {
	Owner     string    `json:"owner" jsonschema:"repository owner"`
	Repo      string    `json:"repo" jsonschema:"repository name"`
	Number    int       `json:"number" jsonschema:"issue number"`
	Title     *string   `json:"title,omitempty" jsonschema:"new title; omit to keep"`
	Body      *string   `json:"body,omitempty" jsonschema:"new body; omit to keep"`
	Labels    *[]string `json:"labels,omitempty" jsonschema:"replacement label set; omit to keep"`
	Assignees *[]string `json:"assignees,omitempty" jsonschema:"replacement assignee set; omit to keep"`
}

type issueStateInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	Number int    `json:"number" jsonschema:"issue number"`
	State  string `json:"state" jsonschema:"open or closed"`
}

type commentIssueInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	Number int    `json:"number" jsonschema:"issue or pull request number"`
	Body   string `json:"body" jsonschema:"comment body"`
}

type searchMergedInput struct {
	Author string `json:"author,omitempty" jsonschema:"author login; defaults to the authenticated user"`
	Since  string `json:"since" jsonschema:"only PRs merged on or after this date (YYYY-MM-DD)"`
	Org    string `json:"org,omitempty" jsonschema:"limit to an organization"`
	Repo   string `json:"repo,omitempty" jsonschema:"limit to one repository (owner/repo); overrides org"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum results (default 100)"`
}

type searchMergedOutput struct {
	PullRequests []model.MergedPR `json:"pull_requests"`
}

type bulkFetchInput struct {
	Targets        []model.PRRef `json:"targets" jsonschema:"pull requests to fetch"`
	MaxConcurrency int           `json:"max_concurrency,omitempty" jsonschema:"concurrent fetch cap (default 10)"`
}

type bulkFetchOutput struct {
	Results []model.PullRequest `json:"results"`
	Failed  []model.PRRef       `json:"failed,omitempty"`
}

type prepareBatchInput struct {
	Author string `json:"author,omitempty" jsonschema:"author login; defaults to the authenticated user"`
	Since  string `json:"since" jsonschema:"only PRs merged on or after this date (YYYY-MM-DD)"`
	Org    string `json:"org,omitempty" jsonschema:"limit to an organization"`
	Repo   string `json:"repo,omitempty" jsonschema:"limit to one repository (owner/repo); overrides org"`
}

type batchIndexInput struct {
	Handle string `json:"handle" jsonschema:"batch handle from github_prepare_contribution_batch"`
}

type selectBatchInput struct {
	Handle  string `json:"handle" jsonschema:"batch handle from github_prepare_contribution_batch"`
	Numbers []int  `json:"numbers" jsonschema:"pull request numbers to read in full"`
}

type selectBatchOutput struct {
	PullRequests []model.PullRequest `json:"pull_requests"`
}

func (s *Server) registerGitHubTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_list_repos",
		Description: "List repositories accessible to the current GitHub credential, most recently updated first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listReposInput) (*mcp.CallToolResult, listReposOutput, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, listReposOutput{}, err
		}
		repos, err := client.ListRepositories(ctx, in.Limit)
		if err != nil {
			return nil, listReposOutput{}, err
		}
		return nil, listReposOutput{Repositories: repos}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_get_repo",
		Description: "Get one repository's metadata.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in repoInput) (*mcp.CallToolResult, *model.Repository, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo, err := client.GetRepository(ctx, in.Owner, in.Repo)
		if err != nil {
			return nil, nil, err
		}
		return nil, repo, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_list_prs",
		Description: "List pull requests for a repository as lightweight summaries.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listPRsInput) (*mcp.CallToolResult, listPRsOutput, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, listPRsOutput{}, err
		}
		prs, err := client.ListPullRequests(ctx, in.Owner, in.Repo, in.State, in.Limit)
		if err != nil {
			return nil, listPRsOutput{}, err
		}
		return nil, listPRsOutput{PullRequests: prs}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_get_pr",
		Description: "Get one pull request with full detail (diff stats, branches, labels, reviewers).",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getPRInput) (*mcp.CallToolResult, *model.PullRequest, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		pr, err := client.GetPullRequest(ctx, model.PRRef{Owner: in.Owner, Repo: in.Repo, Number: in.Number})
		if err != nil {
			return nil, nil, err
		}
		if pr == nil {
			return nil, nil, fmt.Errorf("pull request %s/%s#%d not found", in.Owner, in.Repo, in.Number)
		}
		return nil, pr, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_list_commits",
		Description: "List commit summaries for a repository, optionally filtered by ref, author, and date.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listCommitsInput) (*mcp.CallToolResult, listCommitsOutput, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, listCommitsOutput{}, err
		}
		commits, err := client.ListCommits(ctx, in.Owner, in.Repo, driven.CommitFilter{
			SHA:    in.SHA,
			Author: in.Author,
			Since:  in.Since,
		}, in.Limit)
		if err != nil {
			return nil, listCommitsOutput{}, err
		}
		return nil, listCommitsOutput{Commits: commits}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_get_commit",
		Description: "Get one commit with stats and truncated per-file patches.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getCommitInput) (*mcp.CallToolResult, *model.CommitDetail, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		commit, err := client.GetCommit(ctx, in.Owner, in.Repo, in.SHA)
		if err != nil {
			return nil, nil, err
		}
		if commit == nil {
			return nil, nil, fmt.Errorf("commit %s/%s@%s not found", in.Owner, in.Repo, in.SHA)
		}
		return nil, commit, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_list_branches",
		Description: "List branches for a repository.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listBranchesInput) (*mcp.CallToolResult, listBranchesOutput, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, listBranchesOutput{}, err
		}
		branches, err := client.ListBranches(ctx, in.Owner, in.Repo, in.Limit)
		if err != nil {
			return nil, listBranchesOutput{}, err
		}
		return nil, listBranchesOutput{Branches: branches}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_create_issue",
		Description: "Open a new issue.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in createIssueInput) (*mcp.CallToolResult, *model.Issue, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		issue, err := client.CreateIssue(ctx, in.Owner, in.Repo, in.Title, in.Body, in.Labels, in.Assignees)
		if err != nil {
			return nil, nil, err
		}
		return nil, issue, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_update_issue",
		Description: "Edit an issue. Omitted fields are left unchanged.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in updateIssueInput) (*mcp.CallToolResult, *model.Issue, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		issue, err := client.UpdateIssue(ctx, in.Owner, in.Repo, in.Number, model.IssueChanges{
			Title:     in.Title,
			Body:      in.Body,
			Labels:    in.Labels,
			Assignees: in.Assignees,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, issue, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_set_issue_state",
		Description: "Close or reopen an issue.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in issueStateInput) (*mcp.CallToolResult, *model.Issue, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		issue, err := client.SetIssueState(ctx, in.Owner, in.Repo, in.Number, in.State)
		if err != nil {
			return nil, nil, err
		}
		return nil, issue, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_comment_issue",
		Description: "Add a comment to an issue or pull request.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in commentIssueInput) (*mcp.CallToolResult, *model.IssueComment, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		comment, err := client.CommentOnIssue(ctx, in.Owner, in.Repo, in.Number, in.Body)
		if err != nil {
			return nil, nil, err
		}
		return nil, comment, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_search_merged_prs",
		Description: "Search merged pull requests by author since a date, optionally scoped to an org or repository.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in searchMergedInput) (*mcp.CallToolResult, searchMergedOutput, error) {
		client, err := s.deps.GitHub.GetClient(ctx)
		if err != nil {
			return nil, searchMergedOutput{}, err
		}
		prs, err := client.SearchMergedPRs(ctx, driven.MergedPRQuery{
			Author:    in.Author,
			SinceDate: in.Since,
			Org:       in.Org,
			Repo:      in.Repo,
			Limit:     in.Limit,
		})
		if err != nil {
			return nil, searchMergedOutput{}, err
		}
		return nil, searchMergedOutput{PullRequests: prs}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_bulk_fetch_prs",
		Description: "Fetch many pull requests concurrently with a bounded worker pool. Per-target failures are returned as data, never abort the batch. Results arrive in completion order.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in bulkFetchInput) (*mcp.CallToolResult, bulkFetchOutput, error) {
		results, failed, err := s.deps.Bulk.FetchPullRequests(ctx, in.Targets, in.MaxConcurrency)
		if err != nil {
			return nil, bulkFetchOutput{}, err
		}
		return nil, bulkFetchOutput{Results: results, Failed: failed}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_prepare_contribution_batch",
		Description: "Search and bulk-fetch merged PRs for an author, store the full results locally, and return only a lightweight index plus a handle. Pair with github_select_from_batch to read chosen PRs in full without refetching.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in prepareBatchInput) (*mcp.CallToolResult, *application.BatchSummary, error) {
		summary, err := s.deps.Bulk.PrepareContributionBatch(ctx, in.Author, in.Since, in.Org, in.Repo)
		if err != nil {
			return nil, nil, err
		}
		return nil, summary, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_batch_index",
		Description: "Re-read the lightweight index of a previously prepared batch without refetching anything.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in batchIndexInput) (*mcp.CallToolResult, *application.BatchSummary, error) {
		summary, err := s.deps.Bulk.BatchIndex(ctx, in.Handle)
		if err != nil {
			return nil, nil, err
		}
		return nil, summary, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_select_from_batch",
		Description: "Read full pull request detail for chosen numbers from a previously prepared batch. No network access.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in selectBatchInput) (*mcp.CallToolResult, selectBatchOutput, error) {
		prs, err := s.deps.Bulk.SelectFromBatch(ctx, in.Handle, in.Numbers)
		if err != nil {
			return nil, selectBatchOutput{}, err
		}
		return nil, selectBatchOutput{PullRequests: prs}, nil
	})
}
