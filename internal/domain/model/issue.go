package model

import "time"

// Issue represents a GitHub issue.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	Labels    []string  `json:"labels"`
	Assignees []string  `json:"assignees"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueComment is a comment posted on an issue or pull request.
type IssueComment struct {
	ID          int64     `json:"id"`
	IssueNumber int       `json:"issue_number"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// IssueChanges holds optional field updates for an issue. Nil fields are
// left untouched.
type IssueChanges struct {
	Title     *string
	Body      *string
	Labels    *[]string
	Assignees *[]string
}
