package commit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound/outboundtest"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// --- Mock implementations ---

// MockLFSTracker mocks the post-commit LFS bookkeeping hook.
type MockLFSTracker struct {
	mock.Mock
}

func (m *MockLFSTracker) TrackLFSObject(ctx context.Context, repoID int64, pathInRepo, sha256 string, size int64, commitID string, fileID *int64) error {
	args := m.Called(ctx, repoID, pathInRepo, sha256, size, commitID, fileID)
	return args.Error(0)
}

func (m *MockLFSTracker) RunGCForFile(ctx context.Context, r *model.Repository, pathInRepo, commitID string) error {
	args := m.Called(ctx, r, pathInRepo, commitID)
	return args.Error(0)
}

var _ LFSTracker = (*MockLFSTracker)(nil)

// MockUsageSync mocks the usage ledger rebuild hook.
type MockUsageSync struct {
	mock.Mock
}

func (m *MockUsageSync) RecalculateUsed(ctx context.Context, repo *model.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

var _ UsageSync = (*MockUsageSync)(nil)

// --- Test scaffolding ---

type domainMocks struct {
	files   *outboundtest.MockFileStore
	commits *outboundtest.MockCommitStore
	store   *outboundtest.MockVersionedStore
	blobs   *outboundtest.MockBlobStore
	tracker *MockLFSTracker
	usage   *MockUsageSync
}

func newTestDomain(cfg *Config) (*Domain, *domainMocks) {
	m := &domainMocks{
		files:   new(outboundtest.MockFileStore),
		commits: new(outboundtest.MockCommitStore),
		store:   new(outboundtest.MockVersionedStore),
		blobs:   new(outboundtest.MockBlobStore),
		tracker: new(MockLFSTracker),
		usage:   new(MockUsageSync),
	}
	d := NewDomain(m.files, m.commits, m.store, m.blobs, m.tracker, m.usage, cfg, zap.NewNop())
	return d, m
}

func (m *domainMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.files.AssertExpectations(t)
	m.commits.AssertExpectations(t)
	m.store.AssertExpectations(t)
	m.blobs.AssertExpectations(t)
	m.tracker.AssertExpectations(t)
	m.usage.AssertExpectations(t)
}

// assertCode requires err to be an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
