package model

import "time"

// PRRef identifies a pull request across repositories. It is the fetch
// target for bulk retrieval; results are re-keyed by these fields because
// batch completion order is not target order.
type PRRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// PullRequest is the full detail view of a GitHub pull request.
type PullRequest struct {
	Number       int        `json:"number"`
	Owner        string     `json:"owner"`
	Repo         string     `json:"repo"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	State        string     `json:"state"`
	Author       string     `json:"author"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	URL          string     `json:"url"`
	HeadBranch   string     `json:"head_branch"`
	BaseBranch   string     `json:"base_branch"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	Commits      int        `json:"commits"`
	Draft        bool       `json:"draft"`
	Mergeable    *bool      `json:"mergeable,omitempty"`
	Labels       []string   `json:"labels"`
	Reviewers    []string   `json:"reviewers"`
}

// Ref returns the identifying fields of the pull request.
func (pr PullRequest) Ref() PRRef {
	return PRRef{Owner: pr.Owner, Repo: pr.Repo, Number: pr.Number}
}

// PullRequestSummary is the minimal listing view of a pull request, kept
// small so large result sets stay cheap to hand back to the caller.
type PullRequestSummary struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	URL       string     `json:"url"`
}

// MergedPR is one row from a merged-PR search. Owner and Repo are parsed
// out of the search result so the row can serve as a bulk fetch target.
type MergedPR struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	Body     string     `json:"body,omitempty"`
	Owner    string     `json:"owner"`
	Repo     string     `json:"repo"`
	Author   string     `json:"author"`
	MergedAt *time.Time `json:"merged_at,omitempty"`
	URL      string     `json:"url"`
	Labels   []string   `json:"labels,omitempty"`
}

// Ref returns the identifying fields of the merged PR.
func (m MergedPR) Ref() PRRef {
	return PRRef{Owner: m.Owner, Repo: m.Repo, Number: m.Number}
}
