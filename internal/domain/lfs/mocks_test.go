package lfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/port/outbound/outboundtest"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// --- Mock implementations ---

// MockQuotaChecker mocks the namespace quota gate.
type MockQuotaChecker struct {
	mock.Mock
}

func (m *MockQuotaChecker) CheckQuota(ctx context.Context, namespace string, addBytes int64, private bool) error {
	args := m.Called(ctx, namespace, addBytes, private)
	return args.Error(0)
}

var _ QuotaChecker = (*MockQuotaChecker)(nil)

// --- Test scaffolding ---

type domainMocks struct {
	files   *outboundtest.MockFileStore
	staging *outboundtest.MockStagingStore
	blobs   *outboundtest.MockBlobStore
	quota   *MockQuotaChecker
}

func newTestDomain(cfg *Config) (*Domain, *domainMocks) {
	m := &domainMocks{
		files:   new(outboundtest.MockFileStore),
		staging: new(outboundtest.MockStagingStore),
		blobs:   new(outboundtest.MockBlobStore),
		quota:   new(MockQuotaChecker),
	}
	d := NewDomain(m.files, m.staging, m.blobs, m.quota, cfg, zap.NewNop())
	return d, m
}

func (m *domainMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.files.AssertExpectations(t)
	m.staging.AssertExpectations(t)
	m.blobs.AssertExpectations(t)
	m.quota.AssertExpectations(t)
}

// assertCode requires err to be an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
