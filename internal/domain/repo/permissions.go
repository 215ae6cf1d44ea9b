package repo

import (
	"context"
	"fmt"

	"github.com/kohakuhub/server/internal/model"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// accessLevel orders namespace capabilities.
type accessLevel int

const (
	accessRead accessLevel = iota
	accessWrite
	accessDelete
)

// namespaceAllowed reports whether user may act on namespace at the given
// level. A user always controls their own namespace; otherwise the namespace
// must be an organization the user belongs to with a sufficient role.
func (d *Domain) namespaceAllowed(ctx context.Context, namespace string, user *model.User, level accessLevel) (bool, error) {
	if user == nil {
		return false, nil
	}
	if namespace == user.Username {
		return true, nil
	}

	org, err := d.users.FindByUsername(ctx, namespace)
	if err != nil {
		return false, err
	}
	if org == nil || !org.IsOrg {
		return false, nil
	}

	role, member, err := d.users.OrgRole(ctx, user.ID, org.ID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, nil
	}

	switch level {
	case accessRead:
		return role.CanRead(), nil
	case accessWrite:
		return role.CanWrite(), nil
	default:
		return role.CanAdmin(), nil
	}
}

// requireNamespace turns a failed namespace check into the right error.
func (d *Domain) requireNamespace(ctx context.Context, namespace string, user *model.User, level accessLevel) error {
	if user == nil {
		return apperr.NotAuthenticated("")
	}
	allowed, err := d.namespaceAllowed(ctx, namespace, user, level)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.Forbidden(fmt.Sprintf("no access to namespace %s", namespace))
	}
	return nil
}

// CheckRepoRead authorizes read access. Private repositories are reported
// as missing to viewers without access so their existence does not leak.
func (d *Domain) CheckRepoRead(ctx context.Context, repo *model.Repository, user *model.User) error {
	if !repo.Private {
		return nil
	}
	allowed, err := d.namespaceAllowed(ctx, repo.Namespace, user, accessRead)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.RepoNotFound(repo.FullID)
	}
	return nil
}

// CheckRepoWrite authorizes commits, uploads and branch mutation.
func (d *Domain) CheckRepoWrite(ctx context.Context, repo *model.Repository, user *model.User) error {
	if user == nil {
		return apperr.NotAuthenticated("")
	}
	allowed, err := d.namespaceAllowed(ctx, repo.Namespace, user, accessWrite)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.Forbidden(fmt.Sprintf("write access to %s denied", repo.FullID))
	}
	return nil
}

// CheckRepoDelete authorizes destructive repository operations: delete,
// move and history rewrites.
func (d *Domain) CheckRepoDelete(ctx context.Context, repo *model.Repository, user *model.User) error {
	if user == nil {
		return apperr.NotAuthenticated("")
	}
	allowed, err := d.namespaceAllowed(ctx, repo.Namespace, user, accessDelete)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.Forbidden(fmt.Sprintf("delete access to %s denied", repo.FullID))
	}
	return nil
}
