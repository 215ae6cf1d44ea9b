package repo

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

// MockStorageCleaner mocks the gc hook the domain calls on repo deletion.
type MockStorageCleaner struct {
	mock.Mock
}

func (m *MockStorageCleaner) CleanupRepositoryStorage(ctx context.Context, repo *model.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

var _ StorageCleaner = (*MockStorageCleaner)(nil)

// --- Test scaffolding ---

type domainMocks struct {
	repos   *outboundtest.MockRepoStore
	users   *outboundtest.MockUserStore
	files   *outboundtest.MockFileStore
	commits *outboundtest.MockCommitStore
	store   *outboundtest.MockVersionedStore
	blobs   *outboundtest.MockBlobStore
	cleaner *MockStorageCleaner
}

func newTestDomain(cfg *Config) (*Domain, *domainMocks) {
	m := &domainMocks{
		repos:   new(outboundtest.MockRepoStore),
		users:   new(outboundtest.MockUserStore),
		files:   new(outboundtest.MockFileStore),
		commits: new(outboundtest.MockCommitStore),
		store:   new(outboundtest.MockVersionedStore),
		blobs:   new(outboundtest.MockBlobStore),
		cleaner: new(MockStorageCleaner),
	}
	d := NewDomain(m.repos, m.users, m.files, m.commits, m.store, m.blobs, m.cleaner, cfg, zap.NewNop())
	return d, m
}

func (m *domainMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.repos.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.files.AssertExpectations(t)
	m.commits.AssertExpectations(t)
	m.store.AssertExpectations(t)
	m.blobs.AssertExpectations(t)
	m.cleaner.AssertExpectations(t)
}

// assertCode requires err to be an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
