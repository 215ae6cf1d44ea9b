package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
	"github.com/kohakuhub/server/internal/shared/response"
)

// confirmationTTL bounds how long a destructive-operation token stays valid.
const confirmationTTL = 5 * time.Minute

// AdminHandler serves the token-gated operator surface: user and quota
// management, usage statistics, and raw storage maintenance.
type AdminHandler struct {
	users      outbound.UserStore
	repos      outbound.RepoStore
	lfsHistory outbound.LFSHistoryStore
	blobs      outbound.BlobStore
	confirms   outbound.ConfirmationStore
	usage      *repo.Domain
	logger     *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	users outbound.UserStore,
	repos outbound.RepoStore,
	lfsHistory outbound.LFSHistoryStore,
	blobs outbound.BlobStore,
	confirms outbound.ConfirmationStore,
	usage *repo.Domain,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:      users,
		repos:      repos,
		lfsHistory: lfsHistory,
		blobs:      blobs,
		confirms:   confirms,
		usage:      usage,
		logger:     logger,
	}
}

// GetUser handles GET /api/admin/users/{username}.
func (h *AdminHandler) GetUser(c *gin.Context) {
	username := c.Param("username")
	u, err := h.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		writeErr(c, err)
		return
	}
	if u == nil {
		writeErr(c, apperr.UserNotFound(username))
		return
	}
	c.JSON(http.StatusOK, adminUserView(u))
}

// CreateUser handles POST /api/admin/users. It creates user and organization
// rows alike; admin-created accounts skip email verification.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req model.AdminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Username == "" {
		response.BadRequest(c, "username is required")
		return
	}

	ctx := c.Request.Context()
	normalized := model.NormalizeName(req.Username)
	existing, err := h.users.FindByNormalizedName(ctx, normalized)
	if err != nil {
		writeErr(c, err)
		return
	}
	if existing != nil {
		writeErr(c, apperr.Conflict("username already taken: "+req.Username))
		return
	}

	u := &model.User{
		Username:          req.Username,
		NormalizedName:    normalized,
		Email:             req.Email,
		EmailVerified:     true,
		IsActive:          true,
		IsOrg:             req.IsOrg,
		PrivateQuotaBytes: req.PrivateQuotaBytes,
		PublicQuotaBytes:  req.PublicQuotaBytes,
	}
	if err := h.users.Create(ctx, u); err != nil {
		writeErr(c, err)
		return
	}

	h.logger.Info("Admin created user",
		zap.String("username", u.Username), zap.Bool("is_org", u.IsOrg))
	c.JSON(http.StatusOK, adminUserView(u))
}

// SetQuota handles PATCH /api/admin/users/{username}/quota. A nil field keeps
// the current limit; -1 clears it (unlimited).
func (h *AdminHandler) SetQuota(c *gin.Context) {
	var req model.AdminQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	username := c.Param("username")
	u, err := h.users.FindByUsername(ctx, username)
	if err != nil {
		writeErr(c, err)
		return
	}
	if u == nil {
		writeErr(c, apperr.UserNotFound(username))
		return
	}

	if req.PrivateQuotaBytes != nil {
		u.PrivateQuotaBytes = quotaValue(*req.PrivateQuotaBytes)
	}
	if req.PublicQuotaBytes != nil {
		u.PublicQuotaBytes = quotaValue(*req.PublicQuotaBytes)
	}
	if err := h.users.Update(ctx, u); err != nil {
		writeErr(c, err)
		return
	}

	h.logger.Info("Admin updated quota", zap.String("username", username))
	c.JSON(http.StatusOK, adminUserView(u))
}

// ListRepos handles GET /api/admin/repos?limit=&offset=.
func (h *AdminHandler) ListRepos(c *gin.Context) {
	limit := intQuery(c, "limit", 50, 1000)
	offset := intQuery(c, "offset", 0, 1<<30)

	repos, err := h.repos.List(c.Request.Context(), outbound.RepoFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	views := make([]model.AdminRepoView, 0, len(repos))
	for _, r := range repos {
		views = append(views, model.AdminRepoView{
			Repository: *r,
			Used:       humanize.IBytes(uint64(max64(r.UsedBytes, 0))),
		})
	}
	c.JSON(http.StatusOK, views)
}

// Recalculate handles POST /api/admin/recalculate: it rebuilds every
// repository usage counter from live file rows and refreshes the namespace
// ledgers along the way.
func (h *AdminHandler) Recalculate(c *gin.Context) {
	ctx := c.Request.Context()

	const pageSize = 200
	updated := 0
	namespaces := make(map[string]struct{})

	for offset := 0; ; offset += pageSize {
		page, err := h.repos.List(ctx, outbound.RepoFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			writeErr(c, err)
			return
		}
		for _, r := range page {
			if err := h.usage.RecalculateUsed(ctx, r); err != nil {
				h.logger.Warn("Usage recalculation failed",
					zap.String("repo", r.FullID), zap.Error(err))
				continue
			}
			updated++
			namespaces[r.Namespace] = struct{}{}
		}
		if len(page) < pageSize {
			break
		}
	}

	h.logger.Info("Admin recalculated usage",
		zap.Int("repositories", updated), zap.Int("namespaces", len(namespaces)))
	c.JSON(http.StatusOK, model.AdminRecalculateResult{
		RepositoriesUpdated: updated,
		NamespacesUpdated:   len(namespaces),
	})
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	users, orgs, err := h.users.Counts(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}
	byType, err := h.repos.CountByType(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}
	totalUsed, err := h.repos.TotalUsedBytes(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}
	lfsBytes, err := h.lfsHistory.TotalDistinctSize(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}

	repoCounts := make(map[string]int64, len(byType))
	for t, n := range byType {
		repoCounts[string(t)] = n
	}

	c.JSON(http.StatusOK, model.AdminStats{
		Users:           users,
		Organizations:   orgs,
		Repositories:    repoCounts,
		TotalUsedBytes:  totalUsed,
		TotalUsed:       humanize.IBytes(uint64(max64(totalUsed, 0))),
		LFSObjectsBytes: lfsBytes,
		LFSObjects:      humanize.IBytes(uint64(max64(lfsBytes, 0))),
	})
}

// BrowseStorage handles GET /api/admin/storage?prefix=&limit=.
func (h *AdminHandler) BrowseStorage(c *gin.Context) {
	prefix := c.Query("prefix")
	limit := intQuery(c, "limit", 100, 1000)

	objects, more, err := h.blobs.List(c.Request.Context(), prefix, limit)
	if err != nil {
		writeErr(c, err)
		return
	}

	out := make([]model.AdminStorageObject, 0, len(objects))
	for _, o := range objects {
		out = append(out, model.AdminStorageObject{
			Key:          o.Key,
			Size:         o.Size,
			LastModified: o.LastModified,
		})
	}
	c.JSON(http.StatusOK, model.AdminStorageList{
		Prefix:  prefix,
		Objects: out,
		HasMore: more,
	})
}

// RequestStorageDelete handles POST /api/admin/storage/delete-request. It
// issues a one-shot confirmation token bound to the requested prefix.
func (h *AdminHandler) RequestStorageDelete(c *gin.Context) {
	var req model.AdminDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Prefix == "" {
		response.BadRequest(c, "prefix is required")
		return
	}

	token := uuid.NewString()
	if err := h.confirms.Put(c.Request.Context(), token, req.Prefix, confirmationTTL); err != nil {
		writeErr(c, err)
		return
	}

	h.logger.Warn("Admin storage deletion requested", zap.String("prefix", req.Prefix))
	c.JSON(http.StatusOK, model.AdminConfirmation{
		ConfirmationToken: token,
		ExpiresInSeconds:  int(confirmationTTL.Seconds()),
		Prefix:            req.Prefix,
	})
}

// DeleteStorage handles DELETE /api/admin/storage. The confirmation token
// from RequestStorageDelete must match the prefix; a token is consumed on
// first presentation whether or not it matches.
func (h *AdminHandler) DeleteStorage(c *gin.Context) {
	var req model.AdminDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Prefix == "" || req.ConfirmationToken == "" {
		response.BadRequest(c, "prefix and confirmation_token are required")
		return
	}

	ctx := c.Request.Context()
	stored, err := h.confirms.Take(ctx, req.ConfirmationToken)
	if err != nil {
		if errors.Is(err, outbound.ErrCacheMiss) {
			response.BadRequest(c, "confirmation token expired or unknown")
			return
		}
		writeErr(c, err)
		return
	}
	if stored != req.Prefix {
		response.BadRequest(c, "confirmation token does not match prefix")
		return
	}

	deleted, err := h.blobs.DeletePrefix(ctx, req.Prefix)
	if err != nil {
		writeErr(c, err)
		return
	}

	h.logger.Warn("Admin storage deletion executed",
		zap.String("prefix", req.Prefix), zap.Int("deleted", deleted))
	c.JSON(http.StatusOK, model.AdminDeleteResult{
		Prefix:  req.Prefix,
		Deleted: deleted,
	})
}

// quotaValue maps the wire convention onto the column: negative clears the
// limit, anything else sets it.
func quotaValue(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}

func adminUserView(u *model.User) model.AdminUserView {
	return model.AdminUserView{
		User:        *u,
		PrivateUsed: humanize.IBytes(uint64(max64(u.PrivateUsedBytes, 0))),
		PublicUsed:  humanize.IBytes(uint64(max64(u.PublicUsedBytes, 0))),
	}
}

func intQuery(c *gin.Context, name string, def, ceil int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > ceil {
		return ceil
	}
	return n
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
