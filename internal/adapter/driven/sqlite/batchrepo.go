package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BatchStore = (*BatchRepo)(nil)

// BatchRepo is the SQLite implementation of the BatchStore port interface.
// Batch metadata lives in the batches table; each pull request is one row in
// batch_prs holding the full record as JSON plus the columns needed to index
// and select without decoding everything.
type BatchRepo struct {
	db *DB
}

// NewBatchRepo creates a new BatchRepo backed by the given DB.
func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// handleBytes is the entropy behind a batch handle; 8 bytes yields a 16-char
// hex string.
const handleBytes = 8

func newHandle() (string, error) {
	buf := make([]byte, handleBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate batch handle: %w", err)
	}
	return "b_" + hex.EncodeToString(buf), nil
}

// SaveBatch persists the batch under a freshly generated handle and returns
// it. Any handle already set on the input is ignored.
func (r *BatchRepo) SaveBatch(ctx context.Context, batch model.ContributionBatch) (string, error) {
	handle, err := newHandle()
	if err != nil {
		return "", err
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin batch save: %w", err)
	}
	defer tx.Rollback()

	fetchedAt := batch.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (handle, author, period, org, repo, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		handle, batch.Author, batch.Period, batch.Org, batch.Repo, fetchedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert batch %s: %w", handle, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batch_prs (batch_handle, position, number, repo_owner, repo_name, title, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare batch rows: %w", err)
	}
	defer stmt.Close()

	for i, pr := range batch.PRs {
		data, err := json.Marshal(pr)
		if err != nil {
			return "", fmt.Errorf("marshal PR %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
		}
		if _, err := stmt.ExecContext(ctx, handle, i, pr.Number, pr.Owner, pr.Repo, pr.Title, string(data)); err != nil {
			return "", fmt.Errorf("insert PR %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit batch %s: %w", handle, err)
	}

	return handle, nil
}

// PurgeExpired deletes batches fetched more than maxAge ago, their PR rows
// going with them through the foreign key cascade. Returns the number of
// batches removed. Meant to run once at startup so the side store cannot
// grow without bound.
func (r *BatchRepo) PurgeExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC()

	res, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM batches WHERE datetime(fetched_at) < datetime(?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired batches: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired batches: %w", err)
	}
	return purged, nil
}

// GetBatch loads a full batch by handle. Returns driven.ErrBatchNotFound for
// unknown handles. PRs come back in the order they were saved.
func (r *BatchRepo) GetBatch(ctx context.Context, handle string) (*model.ContributionBatch, error) {
	const query = `SELECT author, period, org, repo, fetched_at FROM batches WHERE handle = ?`

	var batch model.ContributionBatch
	var fetchedAt string

	err := r.db.Reader.QueryRowContext(ctx, query, handle).Scan(
		&batch.Author, &batch.Period, &batch.Org, &batch.Repo, &fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, driven.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", handle, err)
	}

	batch.Handle = handle
	batch.FetchedAt, err = parseTime(fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	batch.PRs, err = r.queryBatchPRs(ctx,
		`SELECT data FROM batch_prs WHERE batch_handle = ? ORDER BY position`, handle)
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// SelectPRs returns the subset of a batch's pull requests matching the given
// numbers. The handle is validated first so an unknown handle surfaces as
// ErrBatchNotFound rather than an empty result.
func (r *BatchRepo) SelectPRs(ctx context.Context, handle string, numbers []int) ([]model.PullRequest, error) {
	var exists int
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batches WHERE handle = ?`, handle).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check batch %s: %w", handle, err)
	}
	if exists == 0 {
		return nil, driven.ErrBatchNotFound
	}

	if len(numbers) == 0 {
		return []model.PullRequest{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(numbers)), ",")
	query := fmt.Sprintf(
		`SELECT data FROM batch_prs WHERE batch_handle = ? AND number IN (%s) ORDER BY position`,
		placeholders,
	)

	args := make([]any, 0, len(numbers)+1)
	args = append(args, handle)
	for _, n := range numbers {
		args = append(args, n)
	}

	prs, err := r.queryBatchPRs(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return prs, nil
}

func (r *BatchRepo) queryBatchPRs(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batch PRs: %w", err)
	}
	defer rows.Close()

	prs := []model.PullRequest{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan batch PR: %w", err)
		}
		var pr model.PullRequest
		if err := json.Unmarshal([]byte(data), &pr); err != nil {
			return nil, fmt.Errorf("unmarshal batch PR: %w", err)
		}
		prs = append(prs, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch PRs: %w", err)
	}

	return prs, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
