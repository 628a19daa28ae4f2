package driven

import (
	"context"
	"errors"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// ErrBatchNotFound signals an unknown or expired batch handle.
var ErrBatchNotFound = errors.New("batch not found")

// BatchStore is the driven port for the bulk-retrieval side store. Full
// result sets are written once under a generated handle so a later, narrower
// read can select a subset without re-fetching from the network.
type BatchStore interface {
	// SaveBatch persists the batch and returns its handle.
	SaveBatch(ctx context.Context, batch model.ContributionBatch) (string, error)

	// GetBatch loads a full batch by handle. Returns ErrBatchNotFound for
	// unknown handles.
	GetBatch(ctx context.Context, handle string) (*model.ContributionBatch, error)

	// SelectPRs returns the subset of a batch's pull requests matching the
	// given numbers, without network access.
	SelectPRs(ctx context.Context, handle string, numbers []int) ([]model.PullRequest, error)
}
