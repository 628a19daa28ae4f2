package model

import "time"

// Commit is the full detail view of a commit.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// CommitSummary carries the first message line and a short SHA only.
type CommitSummary struct {
	SHA          string    `json:"sha"`
	MessageTitle string    `json:"message_title"`
	Author       string    `json:"author"`
	Date         time.Time `json:"date"`
	URL          string    `json:"url"`
}

// CommitFile is one changed file within a CommitDetail. Patch is truncated
// by the adapter to keep single-commit responses bounded.
type CommitFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// CommitDetail is a single commit with per-file changes and stats.
type CommitDetail struct {
	SHA       string       `json:"sha"`
	Message   string       `json:"message"`
	Author    string       `json:"author"`
	Date      time.Time    `json:"date"`
	URL       string       `json:"url"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	Total     int          `json:"total"`
	Files     []CommitFile `json:"files"`
}
