package http

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/gitbridge"
	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
)

// GitHandler serves read-only Git smart-HTTP: the refs advertisement and
// upload-pack. Pushes are rejected at the service negotiation step.
type GitHandler struct {
	repos  *repo.Domain
	bridge *gitbridge.Domain
	logger *zap.Logger
}

// NewGitHandler creates a new git handler.
func NewGitHandler(repos *repo.Domain, bridge *gitbridge.Domain, logger *zap.Logger) *GitHandler {
	return &GitHandler{repos: repos, bridge: bridge, logger: logger}
}

// InfoRefs handles GET /{ns}/{name}.git/info/refs?service=git-upload-pack.
func (h *GitHandler) InfoRefs(c *gin.Context) {
	switch c.Query("service") {
	case gitbridge.UploadPackService:
	case "git-receive-pack":
		response.Forbidden(c, "pushing over HTTP is not supported")
		return
	default:
		response.BadRequest(c, "smart HTTP requires service=git-upload-pack")
		return
	}

	r, ok := h.readableRepo(c)
	if !ok {
		return
	}

	adv, err := h.bridge.AdvertiseRefs(c.Request.Context(), r)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "application/x-git-upload-pack-advertisement", adv)
}

// UploadPack handles POST /{ns}/{name}.git/git-upload-pack. Git clients may
// gzip the request body.
func (h *GitHandler) UploadPack(c *gin.Context) {
	r, ok := h.readableRepo(c)
	if !ok {
		return
	}

	body := io.Reader(c.Request.Body)
	if c.GetHeader("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "malformed gzip body")
			return
		}
		defer gz.Close()
		body = gz
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Content-Type", "application/x-git-upload-pack-result")
	c.Status(http.StatusOK)

	if err := h.bridge.UploadPack(c.Request.Context(), r, body, c.Writer); err != nil {
		// The pack stream may already be underway; the connection is the
		// only remaining error channel.
		if c.Writer.Written() {
			h.logger.Warn("Upload-pack aborted mid-stream",
				zap.String("repo", r.FullID), zap.Error(err))
			c.Abort()
			return
		}
		writeErr(c, err)
	}
}

// readableRepo resolves the repository and enforces read access. Anonymous
// requests that fail get a 401 with a Basic challenge so git clients prompt
// for credentials and retry.
func (h *GitHandler) readableRepo(c *gin.Context) (*model.Repository, bool) {
	ref := repoFromPath(c)
	user := viewer(c)

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		if user == nil {
			h.challenge(c)
			return nil, false
		}
		writeErr(c, err)
		return nil, false
	}
	if err := h.repos.CheckRepoRead(c.Request.Context(), r, user); err != nil {
		if user == nil {
			h.challenge(c)
			return nil, false
		}
		writeErr(c, err)
		return nil, false
	}
	return r, true
}

func (h *GitHandler) challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="kohakuhub", charset="UTF-8"`)
	response.Unauthorized(c, "authentication required")
}
