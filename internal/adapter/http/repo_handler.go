package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
)

// RepoHandler serves repository lifecycle and read endpoints.
type RepoHandler struct {
	repos *repo.Domain
}

// NewRepoHandler creates a new repository handler.
func NewRepoHandler(repos *repo.Domain) *RepoHandler {
	return &RepoHandler{repos: repos}
}

// Create handles POST /api/repos/create.
func (h *RepoHandler) Create(c *gin.Context) {
	var req model.CreateRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.repos.Create(c.Request.Context(), viewer(c), &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /api/repos/delete.
func (h *RepoHandler) Delete(c *gin.Context) {
	var req model.DeleteRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.repos.Delete(c.Request.Context(), viewer(c), &req); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success: true,
		Message: "repository deleted",
	})
}

// Move handles POST /api/repos/move.
func (h *RepoHandler) Move(c *gin.Context) {
	var req model.MoveRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.repos.Move(c.Request.Context(), viewer(c), &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Squash handles POST /api/repos/squash.
func (h *RepoHandler) Squash(c *gin.Context) {
	var req model.SquashRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.repos.Squash(c.Request.Context(), viewer(c), &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /api/{models,datasets,spaces}.
func (h *RepoHandler) List(c *gin.Context) {
	ref := repoFromPath(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	summaries, err := h.repos.List(c.Request.Context(), viewer(c), ref.Type, c.Query("author"), limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	if summaries == nil {
		summaries = []*model.RepoSummary{}
	}
	c.JSON(http.StatusOK, summaries)
}

// Info handles GET /api/{type}s/{namespace}/{name}.
func (h *RepoHandler) Info(c *gin.Context) {
	ref := repoFromPath(c)

	info, err := h.repos.Info(c.Request.Context(), viewer(c), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Revision handles GET /api/{type}s/{namespace}/{name}/revision/{rev}.
func (h *RepoHandler) Revision(c *gin.Context) {
	ref := repoFromPath(c)

	info, err := h.repos.Revision(c.Request.Context(), viewer(c), ref.Type, ref.Namespace, ref.Name, c.Param("rev"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Tree handles GET /api/{type}s/{namespace}/{name}/tree/{rev}/{path}.
// Pagination follows the hub convention: a Link header with rel="next"
// carries the cursor for the following page.
func (h *RepoHandler) Tree(c *gin.Context) {
	ref := repoFromPath(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	opts := repo.TreeOptions{
		Recursive: queryFlag(c, "recursive"),
		Expand:    queryFlag(c, "expand"),
		After:     c.Query("cursor"),
		Limit:     limit,
	}

	entries, next, err := h.repos.Tree(c.Request.Context(), viewer(c), ref.Type, ref.Namespace, ref.Name, c.Param("rev"), treePath(c), opts)
	if err != nil {
		writeErr(c, err)
		return
	}

	if next != "" {
		q := c.Request.URL.Query()
		q.Set("cursor", next)
		c.Header("Link", "<"+c.Request.URL.Path+"?"+q.Encode()+`>; rel="next"`)
	}
	if entries == nil {
		entries = []model.TreeEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Resolve handles GET and HEAD /{type}s/{namespace}/{name}/resolve/{rev}/{path}
// (models also at the site root). It answers 302 with a presigned blob URL;
// only GET counts as a download.
func (h *RepoHandler) Resolve(c *gin.Context) {
	ref := repoFromPath(c)
	isGet := c.Request.Method == http.MethodGet

	res, err := h.repos.Resolve(c.Request.Context(), viewer(c), ref.Type, ref.Namespace, ref.Name, c.Param("rev"), treePath(c), isGet)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Header("X-Repo-Commit", res.CommitID)
	c.Header("ETag", strconv.Quote(res.ETag))
	c.Header("Content-Disposition", `inline; filename=`+strconv.Quote(res.Filename))
	c.Header("Accept-Ranges", "bytes")
	if res.LFS {
		c.Header("X-Linked-Etag", strconv.Quote(res.SHA256))
		c.Header("X-Linked-Size", strconv.FormatInt(res.Size, 10))
	}
	if !isGet {
		// A redirect body never materializes on HEAD, so the size header
		// can report the file itself, which is what hub clients read.
		c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
	}
	c.Header("Location", res.URL)
	c.Status(http.StatusFound)
}

// queryFlag parses a loose boolean query parameter. Hub clients send
// python-styled "True" alongside the usual forms.
func queryFlag(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "True", "TRUE", "yes":
		return true
	}
	return false
}
