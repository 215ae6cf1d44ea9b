package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kohakuhub/server/internal/domain/commit"
	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
)

// CommitHandler serves the NDJSON commit endpoint, preupload classification
// and commit history.
type CommitHandler struct {
	repos   *repo.Domain
	commits *commit.Domain
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(repos *repo.Domain, commits *commit.Domain) *CommitHandler {
	return &CommitHandler{repos: repos, commits: commits}
}

// Commit handles POST /api/{type}s/{namespace}/{name}/commit/{branch}.
// The body is application/x-ndjson and is streamed straight into the
// commit engine.
func (h *CommitHandler) Commit(c *gin.Context) {
	ref := repoFromPath(c)
	user := viewer(c)

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repos.CheckRepoWrite(c.Request.Context(), r, user); err != nil {
		writeErr(c, err)
		return
	}

	resp, err := h.commits.Commit(c.Request.Context(), user, r, c.Param("branch"), c.Request.Body)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Preupload handles POST /api/{type}s/{namespace}/{name}/preupload/{rev}.
func (h *CommitHandler) Preupload(c *gin.Context) {
	ref := repoFromPath(c)
	user := viewer(c)

	var req model.PreuploadRequest
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

	resp, err := h.commits.Preupload(c.Request.Context(), r, &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/{type}s/{namespace}/{name}/commits/{rev}.
func (h *CommitHandler) History(c *gin.Context) {
	ref := repoFromPath(c)

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repos.CheckRepoRead(c.Request.Context(), r, viewer(c)); err != nil {
		writeErr(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.commits.History(c.Request.Context(), r, c.Param("rev"), limit, c.Query("after"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Detail handles GET /api/{type}s/{namespace}/{name}/commit/{commit_id}.
func (h *CommitHandler) Detail(c *gin.Context) {
	h.detail(c, false)
}

// Diff handles GET /api/{type}s/{namespace}/{name}/commit/{commit_id}/diff,
// which additionally renders textual diffs for small non-LFS files.
func (h *CommitHandler) Diff(c *gin.Context) {
	h.detail(c, true)
}

func (h *CommitHandler) detail(c *gin.Context, includeText bool) {
	ref := repoFromPath(c)

	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.repos.CheckRepoRead(c.Request.Context(), r, viewer(c)); err != nil {
		writeErr(c, err)
		return
	}

	info, err := h.commits.Detail(c.Request.Context(), r, c.Param("commit_id"), includeText)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
