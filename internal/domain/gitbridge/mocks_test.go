package gitbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/port/outbound/outboundtest"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// --- Test scaffolding ---

type domainMocks struct {
	store *outboundtest.MockVersionedStore
}

func newTestDomain(cfg *Config) (*Domain, *domainMocks) {
	m := &domainMocks{store: new(outboundtest.MockVersionedStore)}
	d := NewDomain(m.store, cfg, zap.NewNop())
	return d, m
}

func (m *domainMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.store.AssertExpectations(t)
}

// assertCode requires err to be an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
