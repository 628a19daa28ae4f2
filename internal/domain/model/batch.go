package model

import "time"

// BatchIndexEntry is the lightweight index row returned after a bulk fetch.
// It carries just enough for a caller to choose a subset worth reading in
// full from the side store.
type BatchIndexEntry struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Repo   string `json:"repo"` // owner/repo
}

// ContributionBatch is a persisted bulk-fetch result set. Handle is the key
// for later partial reads without further network access.
type ContributionBatch struct {
	Handle    string        `json:"handle"`
	Author    string        `json:"author"`
	Period    string        `json:"period"`
	Org       string        `json:"org,omitempty"`
	Repo      string        `json:"repo,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
	PRs       []PullRequest `json:"prs"`
}

// Index returns the lightweight index of the batch contents.
func (b ContributionBatch) Index() []BatchIndexEntry {
	entries := make([]BatchIndexEntry, 0, len(b.PRs))
	for _, pr := range b.PRs {
		entries = append(entries, BatchIndexEntry{
			Number: pr.Number,
			Title:  pr.Title,
			Repo:   pr.Owner + "/" + pr.Repo,
		})
	}
	return entries
}
