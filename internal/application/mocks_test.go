package application_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockBroker struct {
	initFn   func(ctx context.Context) (*model.DeviceAuthorization, error)
	statusFn func(ctx context.Context, deviceCode string) (*driven.DeviceStatusResult, error)
	bundleFn func(ctx context.Context, sessionToken string) (*model.SessionBundle, error)

	bundleCalls atomic.Int32
	statusCalls atomic.Int32
}

func (m *mockBroker) InitDeviceFlow(ctx context.Context) (*model.DeviceAuthorization, error) {
	return m.initFn(ctx)
}

func (m *mockBroker) DeviceStatus(ctx context.Context, deviceCode string) (*driven.DeviceStatusResult, error) {
	m.statusCalls.Add(1)
	return m.statusFn(ctx, deviceCode)
}

func (m *mockBroker) FetchSessionBundle(ctx context.Context, sessionToken string) (*model.SessionBundle, error) {
	m.bundleCalls.Add(1)
	if m.bundleFn == nil {
		return nil, driven.ErrSessionInvalid
	}
	return m.bundleFn(ctx, sessionToken)
}

type mockGitHubClient struct {
	token string

	authUser     func(ctx context.Context) (string, error)
	getPR        func(ctx context.Context, ref model.PRRef) (*model.PullRequest, error)
	searchMerged func(ctx context.Context, query driven.MergedPRQuery) ([]model.MergedPR, error)
}

func (m *mockGitHubClient) AuthenticatedUser(ctx context.Context) (string, error) {
	if m.authUser == nil {
		return "testuser", nil
	}
	return m.authUser(ctx)
}

func (m *mockGitHubClient) ListRepositories(_ context.Context, _ int) ([]model.Repository, error) {
	return nil, nil
}

func (m *mockGitHubClient) GetRepository(_ context.Context, _, _ string) (*model.Repository, error) {
	return nil, nil
}

func (m *mockGitHubClient) ListPullRequests(_ context.Context, _, _, _ string, _ int) ([]model.PullRequestSummary, error) {
	return nil, nil
}

func (m *mockGitHubClient) GetPullRequest(ctx context.Context, ref model.PRRef) (*model.PullRequest, error) {
	if m.getPR == nil {
		return nil, nil
	}
	return m.getPR(ctx, ref)
}

func (m *mockGitHubClient) ListCommits(_ context.Context, _, _ string, _ driven.CommitFilter, _ int) ([]model.CommitSummary, error) {
	return nil, nil
}

func (m *mockGitHubClient) GetCommit(_ context.Context, _, _, _ string) (*model.CommitDetail, error) {
	return nil, nil
}

func (m *mockGitHubClient) ListBranches(_ context.Context, _, _ string, _ int) ([]model.Branch, error) {
	return nil, nil
}

func (m *mockGitHubClient) CreateIssue(_ context.Context, _, _, _, _ string, _, _ []string) (*model.Issue, error) {
	return nil, nil
}

func (m *mockGitHubClient) UpdateIssue(_ context.Context, _, _ string, _ int, _ model.IssueChanges) (*model.Issue, error) {
	return nil, nil
}

func (m *mockGitHubClient) SetIssueState(_ context.Context, _, _ string, _ int, _ string) (*model.Issue, error) {
	return nil, nil
}

func (m *mockGitHubClient) CommentOnIssue(_ context.Context, _, _ string, _ int, _ string) (*model.IssueComment, error) {
	return nil, nil
}

func (m *mockGitHubClient) SearchMergedPRs(ctx context.Context, query driven.MergedPRQuery) ([]model.MergedPR, error) {
	if m.searchMerged == nil {
		return nil, nil
	}
	return m.searchMerged(ctx, query)
}

type mockSlackClient struct {
	token string
}

func (m *mockSlackClient) AuthTest(_ context.Context) (string, string, error) {
	return "Acme", "devlink-bot", nil
}

func (m *mockSlackClient) ListChannels(_ context.Context, _ int, _ bool) ([]model.Channel, error) {
	return nil, nil
}

func (m *mockSlackClient) ListUsers(_ context.Context, _ int) ([]model.SlackUser, error) {
	return nil, nil
}

func (m *mockSlackClient) PostMessage(_ context.Context, _, _ string) (*model.MessageReceipt, error) {
	return nil, nil
}

func (m *mockSlackClient) GetChannelMessages(_ context.Context, _ string, _ time.Time, _ int) ([]model.SlackMessage, error) {
	return nil, nil
}

func (m *mockSlackClient) GetThreadReplies(_ context.Context, _, _ string, _ int) ([]model.SlackMessage, error) {
	return nil, nil
}

type mockBatchStore struct {
	mu      sync.Mutex
	batches map[string]model.ContributionBatch
	nextID  int
}

func newMockBatchStore() *mockBatchStore {
	return &mockBatchStore{batches: make(map[string]model.ContributionBatch)}
}

func (m *mockBatchStore) SaveBatch(_ context.Context, batch model.ContributionBatch) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	handle := fmt.Sprintf("b_%016x", m.nextID)
	batch.Handle = handle
	m.batches[handle] = batch
	return handle, nil
}

func (m *mockBatchStore) GetBatch(_ context.Context, handle string) (*model.ContributionBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[handle]
	if !ok {
		return nil, driven.ErrBatchNotFound
	}
	return &batch, nil
}

func (m *mockBatchStore) SelectPRs(_ context.Context, handle string, numbers []int) ([]model.PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[handle]
	if !ok {
		return nil, driven.ErrBatchNotFound
	}

	wanted := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}

	var prs []model.PullRequest
	for _, pr := range batch.PRs {
		if wanted[pr.Number] {
			prs = append(prs, pr)
		}
	}
	return prs, nil
}
