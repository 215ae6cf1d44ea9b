package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kohakuhub/server/internal/model"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

func orgRepo(private bool) *model.Repository {
	return &model.Repository{
		ID:        8,
		RepoType:  model.RepoTypeModel,
		Namespace: "acme",
		Name:      "m2",
		FullID:    "acme/m2",
		Private:   private,
		OwnerID:   2,
	}
}

func TestCheckRepoRead(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("public is open to anyone", func(t *testing.T) {
		d, m := newTestDomain(nil)
		assert.NoError(t, d.CheckRepoRead(ctx, orgRepo(false), nil))
		m.users.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
	})

	t.Run("private owner", func(t *testing.T) {
		d, _ := newTestDomain(nil)
		repo := testRepo()
		repo.Private = true
		assert.NoError(t, d.CheckRepoRead(ctx, repo, user))
	})

	t.Run("private hidden from anonymous", func(t *testing.T) {
		d, _ := newTestDomain(nil)
		assertCode(t, d.CheckRepoRead(ctx, orgRepo(true), nil), apperr.CodeRepoNotFound)
	})

	t.Run("private org visitor can read", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleVisitor, true, nil)
		assert.NoError(t, d.CheckRepoRead(ctx, orgRepo(true), user))
	})

	t.Run("private hidden from non-members", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRole(""), false, nil)
		assertCode(t, d.CheckRepoRead(ctx, orgRepo(true), user), apperr.CodeRepoNotFound)
	})

	t.Run("another user's namespace is not an org", func(t *testing.T) {
		d, m := newTestDomain(nil)
		bob := &model.User{ID: 3, Username: "bob", IsActive: true}
		m.users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
		repo := testRepo()
		repo.Private = true
		assertCode(t, d.CheckRepoRead(ctx, repo, bob), apperr.CodeRepoNotFound)
		m.users.AssertNotCalled(t, "OrgRole", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCheckRepoWrite(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("anonymous", func(t *testing.T) {
		d, _ := newTestDomain(nil)
		assertCode(t, d.CheckRepoWrite(ctx, orgRepo(false), nil), apperr.CodeUnauthorized)
	})

	t.Run("owner", func(t *testing.T) {
		d, _ := newTestDomain(nil)
		assert.NoError(t, d.CheckRepoWrite(ctx, testRepo(), user))
	})

	t.Run("org member", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleMember, true, nil)
		assert.NoError(t, d.CheckRepoWrite(ctx, orgRepo(false), user))
	})

	t.Run("org visitor", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleVisitor, true, nil)
		assertCode(t, d.CheckRepoWrite(ctx, orgRepo(false), user), apperr.CodeForbidden)
	})
}

func TestCheckRepoDelete(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("owner", func(t *testing.T) {
		d, _ := newTestDomain(nil)
		assert.NoError(t, d.CheckRepoDelete(ctx, testRepo(), user))
	})

	t.Run("org member is not enough", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleMember, true, nil)
		assertCode(t, d.CheckRepoDelete(ctx, orgRepo(false), user), apperr.CodeForbidden)
	})

	t.Run("org admin", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleAdmin, true, nil)
		assert.NoError(t, d.CheckRepoDelete(ctx, orgRepo(false), user))
	})

	t.Run("org super-admin", func(t *testing.T) {
		d, m := newTestDomain(nil)
		m.users.On("FindByUsername", mock.Anything, "acme").Return(testOrg(), nil)
		m.users.On("OrgRole", mock.Anything, int64(1), int64(2)).Return(model.OrgRoleSuperAdmin, true, nil)
		assert.NoError(t, d.CheckRepoDelete(ctx, orgRepo(false), user))
	})
}
