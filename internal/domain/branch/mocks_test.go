package branch

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

// MockHistorySync mocks the catalog bookkeeping hooks.
type MockHistorySync struct {
	mock.Mock
}

func (m *MockHistorySync) TrackCommitLFSObjects(ctx context.Context, r *model.Repository, commitID string) error {
	args := m.Called(ctx, r, commitID)
	return args.Error(0)
}

func (m *MockHistorySync) SyncFileTable(ctx context.Context, r *model.Repository, ref string) error {
	args := m.Called(ctx, r, ref)
	return args.Error(0)
}

func (m *MockHistorySync) CheckCommitRangeRecoverability(ctx context.Context, r *model.Repository, branch, target string) (bool, []model.CommitRecoverability, error) {
	args := m.Called(ctx, r, branch, target)
	if args.Get(1) == nil {
		return args.Bool(0), nil, args.Error(2)
	}
	return args.Bool(0), args.Get(1).([]model.CommitRecoverability), args.Error(2)
}

var _ HistorySync = (*MockHistorySync)(nil)

// --- Test scaffolding ---

type domainMocks struct {
	store   *outboundtest.MockVersionedStore
	commits *outboundtest.MockCommitStore
	sync    *MockHistorySync
}

func newTestDomain(cfg *Config) (*Domain, *domainMocks) {
	m := &domainMocks{
		store:   new(outboundtest.MockVersionedStore),
		commits: new(outboundtest.MockCommitStore),
		sync:    new(MockHistorySync),
	}
	d := NewDomain(m.store, m.commits, m.sync, cfg, zap.NewNop())
	return d, m
}

func (m *domainMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.store.AssertExpectations(t)
	m.commits.AssertExpectations(t)
	m.sync.AssertExpectations(t)
}

// assertCode requires err to be an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
