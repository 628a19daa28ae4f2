package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// defaultBulkConcurrency bounds simultaneous outbound requests in a batch.
const defaultBulkConcurrency = 10

// BatchSummary is the lightweight first-phase result of a contribution
// batch: an index of what was stored plus the handle for a later full read.
type BatchSummary struct {
	Handle    string                  `json:"handle"`
	Total     int                     `json:"total"`
	Index     []model.BatchIndexEntry `json:"index"`
	Failed    []model.PRRef           `json:"failed,omitempty"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// BulkService drives fan-out retrieval of many independent fetch targets
// with a bounded worker pool, and the two-phase contribution batch workflow
// backed by the side store.
type BulkService struct {
	github      *GitHubProvider
	batches     driven.BatchStore
	concurrency int
}

// NewBulkService creates a bulk service with the given default concurrency
// cap. A non-positive cap falls back to the built-in default.
func NewBulkService(github *GitHubProvider, batches driven.BatchStore, concurrency int) *BulkService {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}
	return &BulkService{
		github:      github,
		batches:     batches,
		concurrency: concurrency,
	}
}

// FetchPullRequests fetches every target independently through a bounded
// worker pool. A single target's failure is recorded and never cancels
// sibling fetches or fails the batch. Results arrive in completion order;
// callers needing positional correspondence must re-key by PRRef fields.
func (s *BulkService) FetchPullRequests(ctx context.Context, refs []model.PRRef, maxConcurrency int) ([]model.PullRequest, []model.PRRef, error) {
	if len(refs) == 0 {
		return []model.PullRequest{}, nil, nil
	}

	client, err := s.github.GetClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	if maxConcurrency <= 0 {
		maxConcurrency = s.concurrency
	}

	var (
		mu      sync.Mutex
		results []model.PullRequest
		failed  []model.PRRef
		wg      sync.WaitGroup
	)

	sem := make(chan struct{}, maxConcurrency)

	for _, ref := range refs {
		wg.Add(1)
		go func(ref model.PRRef) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			pr, err := client.GetPullRequest(ctx, ref)
			if err != nil {
				slog.Warn("bulk fetch target failed",
					"repo", ref.Owner+"/"+ref.Repo,
					"number", ref.Number,
					"error", err,
				)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil || pr == nil {
				failed = append(failed, ref)
				return
			}
			results = append(results, *pr)
		}(ref)
	}

	wg.Wait()

	slog.Debug("bulk fetch finished",
		"targets", len(refs),
		"results", len(results),
		"failed", len(failed),
	)
	return results, failed, nil
}

// PrepareContributionBatch searches merged pull requests for an author since
// a cutoff date, fetches full detail for each hit concurrently, persists the
// result set to the side store, and returns only the lightweight index. The
// second phase, SelectFromBatch, reads the stored detail without any network
// access.
func (s *BulkService) PrepareContributionBatch(ctx context.Context, author, sinceDate, org, repo string) (*BatchSummary, error) {
	client, err := s.github.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	if author == "" {
		author, err = client.AuthenticatedUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving author: %w", err)
		}
	}

	merged, err := client.SearchMergedPRs(ctx, driven.MergedPRQuery{
		Author:    author,
		SinceDate: sinceDate,
		Org:       org,
		Repo:      repo,
	})
	if err != nil {
		return nil, err
	}

	refs := make([]model.PRRef, 0, len(merged))
	for _, m := range merged {
		refs = append(refs, m.Ref())
	}

	results, failed, err := s.FetchPullRequests(ctx, refs, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := model.ContributionBatch{
		Author:    author,
		Period:    fmt.Sprintf("%s..%s", sinceDate, now.Format("2006-01-02")),
		Org:       org,
		Repo:      repo,
		FetchedAt: now,
		PRs:       results,
	}

	handle, err := s.batches.SaveBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("persisting contribution batch: %w", err)
	}

	slog.Info("contribution batch prepared",
		"handle", handle,
		"author", author,
		"total", len(results),
		"failed", len(failed),
	)

	return &BatchSummary{
		Handle:    handle,
		Total:     len(results),
		Index:     batch.Index(),
		Failed:    failed,
		FetchedAt: now,
	}, nil
}

// SelectFromBatch returns full detail for the chosen pull request numbers
// from a previously prepared batch. No network access is involved.
func (s *BulkService) SelectFromBatch(ctx context.Context, handle string, numbers []int) ([]model.PullRequest, error) {
	return s.batches.SelectPRs(ctx, handle, numbers)
}

// BatchIndex re-reads the lightweight index of a previously prepared batch,
// so a lost summary does not force a fresh prepare.
func (s *BulkService) BatchIndex(ctx context.Context, handle string) (*BatchSummary, error) {
	batch, err := s.batches.GetBatch(ctx, handle)
	if err != nil {
		return nil, err
	}

	return &BatchSummary{
		Handle:    batch.Handle,
		Total:     len(batch.PRs),
		Index:     batch.Index(),
		FetchedAt: batch.FetchedAt,
	}, nil
}
