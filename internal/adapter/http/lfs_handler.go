package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kohakuhub/server/internal/domain/lfs"
	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
)

// LFSContentType is the media type of the Git-LFS batch protocol.
const LFSContentType = "application/vnd.git-lfs+json"

// LFSHandler serves the Git-LFS batch protocol plus the multipart
// completion and verification endpoints its responses point at.
type LFSHandler struct {
	repos *repo.Domain
	lfs   *lfs.Domain
}

// NewLFSHandler creates a new LFS handler.
func NewLFSHandler(repos *repo.Domain, lfsDomain *lfs.Domain) *LFSHandler {
	return &LFSHandler{repos: repos, lfs: lfsDomain}
}

// Batch handles POST .../info/lfs/objects/batch. Uploads require write
// permission, downloads read permission.
func (h *LFSHandler) Batch(c *gin.Context) {
	ref := repoFromPath(c)
	user := viewer(c)

	var req model.LFSBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		lfsError(c, http.StatusBadRequest, "invalid batch request: "+err.Error())
		return
	}

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	switch req.Operation {
	case model.LFSOperationUpload:
		err = h.repos.CheckRepoWrite(c.Request.Context(), r, user)
	case model.LFSOperationDownload:
		err = h.repos.CheckRepoRead(c.Request.Context(), r, user)
	default:
		lfsError(c, http.StatusUnprocessableEntity, "unsupported operation "+req.Operation)
		return
	}
	if err != nil {
		writeErr(c, err)
		return
	}

	resp, err := h.lfs.Batch(c.Request.Context(), r, &req, isBrowserClient(c))
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Header("Content-Type", LFSContentType)
	c.JSON(http.StatusOK, resp)
}

// Complete handles POST .../info/lfs/complete[/{upload_id}]. The upload id
// comes from the path when present, otherwise from the body.
func (h *LFSHandler) Complete(c *gin.Context) {
	ref := repoFromPath(c)
	user := viewer(c)

	var req model.LFSCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	uploadID := c.Param("upload_id")
	if uploadID == "" {
		uploadID = req.UploadID
	}
	if uploadID == "" {
		response.BadRequest(c, "upload_id is required")
		return
	}

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repos.CheckRepoWrite(c.Request.Context(), r, user); err != nil {
		writeErr(c, err)
		return
	}

	status, err := h.lfs.Complete(c.Request.Context(), r, uploadID, &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Verify handles POST .../info/lfs/verify.
func (h *LFSHandler) Verify(c *gin.Context) {
	ref := repoFromPath(c)
	user := viewer(c)

	var req model.LFSVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repos.CheckRepoWrite(c.Request.Context(), r, user); err != nil {
		writeErr(c, err)
		return
	}

	status, err := h.lfs.Verify(c.Request.Context(), r, &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// lfsError answers in the protocol's own error shape and media type.
func lfsError(c *gin.Context, status int, message string) {
	c.Header("Content-Type", LFSContentType)
	c.JSON(status, gin.H{"message": message})
}

// isBrowserClient reports whether the batch request came from a browser
// upload rather than a git-lfs or hub client. Browser PUTs carry a
// Content-Type the presigned URL must account for.
func isBrowserClient(c *gin.Context) bool {
	ua := c.GetHeader("User-Agent")
	if strings.HasPrefix(ua, "git-lfs/") || strings.Contains(ua, "huggingface") || strings.Contains(ua, "hf_hub") {
		return false
	}
	return strings.Contains(ua, "Mozilla/")
}
