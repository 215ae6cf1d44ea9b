package repo

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// CheckQuota fails when the namespace cannot absorb addBytes more in the
// given visibility class. A null quota means unlimited.
func (d *Domain) CheckQuota(ctx context.Context, namespace string, addBytes int64, private bool) error {
	if addBytes <= 0 {
		return nil
	}

	owner, err := d.users.FindByUsername(ctx, namespace)
	if err != nil {
		return err
	}
	if owner == nil {
		return apperr.UserNotFound(namespace)
	}

	quota, used := owner.QuotaFor(private)
	if quota == nil {
		return nil
	}
	if used+addBytes > *quota {
		class := "public"
		if private {
			class = "private"
		}
		return apperr.QuotaExceeded(fmt.Sprintf(
			"%s %s storage quota exceeded: %s used + %s requested > %s limit",
			namespace, class,
			humanize.IBytes(uint64(used)),
			humanize.IBytes(uint64(addBytes)),
			humanize.IBytes(uint64(*quota)),
		))
	}
	return nil
}

// RecalculateUsed rebuilds the repository's usage counter from live File
// rows and refreshes the owning namespace ledger.
func (d *Domain) RecalculateUsed(ctx context.Context, repo *model.Repository) error {
	sum, err := d.files.SumActiveSize(ctx, repo.ID)
	if err != nil {
		return err
	}
	if err := d.repos.SetUsedBytes(ctx, repo.ID, sum); err != nil {
		return err
	}
	repo.UsedBytes = sum

	d.syncNamespaceUsage(ctx, repo.Namespace, repo.Private)
	return nil
}

// syncNamespaceUsage rebuilds one visibility ledger of a namespace from its
// repositories. Failures are logged; the ledger is rebuilt again on the
// next successful pass.
func (d *Domain) syncNamespaceUsage(ctx context.Context, namespace string, private bool) {
	owner, err := d.users.FindByUsername(ctx, namespace)
	if err != nil || owner == nil {
		d.logger.Warn("Namespace ledger owner lookup failed",
			zap.String("namespace", namespace), zap.Error(err))
		return
	}
	sum, err := d.repos.SumUsedByNamespace(ctx, namespace, private)
	if err != nil {
		d.logger.Warn("Namespace usage sum failed",
			zap.String("namespace", namespace), zap.Error(err))
		return
	}
	if err := d.users.SetUsedBytes(ctx, owner.ID, private, sum); err != nil {
		d.logger.Warn("Namespace ledger update failed",
			zap.String("namespace", namespace), zap.Error(err))
	}
}
