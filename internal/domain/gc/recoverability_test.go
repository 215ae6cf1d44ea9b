package gc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

func commitRow(path, oid string) *model.LFSObjectHistory {
	return &model.LFSObjectHistory{RepositoryID: 7, PathInRepo: path, SHA256: oid}
}

func TestCheckLFSRecoverability(t *testing.T) {
	ctx := context.Background()

	t.Run("commit without lfs content is trivially recoverable", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.history.On("ListByCommit", mock.Anything, int64(7), "c1").
			Return([]*model.LFSObjectHistory{}, nil)

		ok, missing, err := d.CheckLFSRecoverability(ctx, 7, "c1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, missing)
		m.blobs.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("all blobs present", func(t *testing.T) {
		d, m := newTestDomain(nil)
		a, b := testOID("a"), testOID("b")
		m.history.On("ListByCommit", mock.Anything, int64(7), "c1").
			Return([]*model.LFSObjectHistory{commitRow("a.bin", a), commitRow("b.bin", b)}, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(a)).Return(true, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(b)).Return(true, nil)

		ok, missing, err := d.CheckLFSRecoverability(ctx, 7, "c1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, missing)
		m.assertExpectations(t)
	})

	t.Run("missing paths come back sorted", func(t *testing.T) {
		d, m := newTestDomain(nil)
		a, b := testOID("a"), testOID("b")
		m.history.On("ListByCommit", mock.Anything, int64(7), "c1").
			Return([]*model.LFSObjectHistory{commitRow("z.bin", b), commitRow("a.bin", a)}, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(a)).Return(false, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(b)).Return(false, nil)

		ok, missing, err := d.CheckLFSRecoverability(ctx, 7, "c1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"a.bin", "z.bin"}, missing)
		m.assertExpectations(t)
	})

	t.Run("probe failure surfaces", func(t *testing.T) {
		d, m := newTestDomain(nil)
		a := testOID("a")
		m.history.On("ListByCommit", mock.Anything, int64(7), "c1").
			Return([]*model.LFSObjectHistory{commitRow("a.bin", a)}, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(a)).Return(false, assert.AnError)

		_, _, err := d.CheckLFSRecoverability(ctx, 7, "c1")
		require.Error(t, err)
		m.assertExpectations(t)
	})
}

func TestCheckCommitRangeRecoverability(t *testing.T) {
	ctx := context.Background()
	r := testRepo()

	noRows := func(m *domainMocks, commitIDs ...string) {
		for _, id := range commitIDs {
			m.history.On("ListByCommit", mock.Anything, int64(7), id).
				Return([]*model.LFSObjectHistory{}, nil)
		}
	}

	t.Run("stops at the target inclusive", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.store.On("LogCommits", mock.Anything, testStoreName, "main",
			outbound.LogOptions{Amount: commitLogPage}).
			Return(&outbound.CommitPage{
				Commits: []outbound.CommitRecord{{ID: "c3"}, {ID: "c2"}, {ID: "c1"}},
				HasMore: true, NextAfter: "c1",
			}, nil)
		noRows(m, "c3", "c2")

		ok, results, err := d.CheckCommitRangeRecoverability(ctx, r, "main", "c2")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, results, 2)
		assert.Equal(t, "c3", results[0].CommitID)
		assert.Equal(t, "c2", results[1].CommitID)
		// c1 sits below the target and is never probed.
		m.history.AssertNotCalled(t, "ListByCommit", mock.Anything, int64(7), "c1")
		m.assertExpectations(t)
	})

	t.Run("pages through history until the target", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.store.On("LogCommits", mock.Anything, testStoreName, "main",
			outbound.LogOptions{Amount: commitLogPage}).
			Return(&outbound.CommitPage{
				Commits: []outbound.CommitRecord{{ID: "c3"}},
				HasMore: true, NextAfter: "c3",
			}, nil)
		m.store.On("LogCommits", mock.Anything, testStoreName, "main",
			outbound.LogOptions{After: "c3", Amount: commitLogPage}).
			Return(&outbound.CommitPage{
				Commits: []outbound.CommitRecord{{ID: "c2"}, {ID: "c1"}},
			}, nil)
		noRows(m, "c3", "c2", "c1")

		ok, results, err := d.CheckCommitRangeRecoverability(ctx, r, "main", "c1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, results, 3)
		m.assertExpectations(t)
	})

	t.Run("lost content flags the commit", func(t *testing.T) {
		d, m := newTestDomain(nil)
		a := testOID("a")
		m.store.On("LogCommits", mock.Anything, testStoreName, "main",
			outbound.LogOptions{Amount: commitLogPage}).
			Return(&outbound.CommitPage{
				Commits: []outbound.CommitRecord{{ID: "c2"}, {ID: "c1"}},
			}, nil)
		m.history.On("ListByCommit", mock.Anything, int64(7), "c2").
			Return([]*model.LFSObjectHistory{commitRow("big.bin", a)}, nil)
		m.blobs.On("Exists", mock.Anything, model.LFSObjectKey(a)).Return(false, nil)
		noRows(m, "c1")

		ok, results, err := d.CheckCommitRangeRecoverability(ctx, r, "main", "c1")
		require.NoError(t, err)
		assert.False(t, ok)
		require.Len(t, results, 2)
		assert.False(t, results[0].OK)
		assert.Equal(t, []string{"big.bin"}, results[0].Missing)
		assert.True(t, results[1].OK)
		m.assertExpectations(t)
	})

	t.Run("target missing from history", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.store.On("LogCommits", mock.Anything, testStoreName, "main",
			outbound.LogOptions{Amount: commitLogPage}).
			Return(&outbound.CommitPage{
				Commits: []outbound.CommitRecord{{ID: "c2"}, {ID: "c1"}},
			}, nil)
		noRows(m, "c2", "c1")

		_, _, err := d.CheckCommitRangeRecoverability(ctx, r, "main", "deadbeef")
		assertCode(t, err, apperr.CodeRevisionNotFound)
		m.assertExpectations(t)
	})
}
