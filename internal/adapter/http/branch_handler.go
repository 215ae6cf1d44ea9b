package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kohakuhub/server/internal/domain/branch"
	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
)

// BranchHandler serves branch and tag operations: create, delete, revert,
// reset and merge.
type BranchHandler struct {
	repos    *repo.Domain
	branches *branch.Domain
}

// NewBranchHandler creates a new branch handler.
func NewBranchHandler(repos *repo.Domain, branches *branch.Domain) *BranchHandler {
	return &BranchHandler{repos: repos, branches: branches}
}

// writableRepo resolves the repository and enforces write permission.
func (h *BranchHandler) writableRepo(c *gin.Context) (*model.Repository, bool) {
	ref := repoFromPath(c)
	r, err := h.repos.Get(c.Request.Context(), ref.Type, ref.Namespace, ref.Name)
	if err != nil {
		writeErr(c, err)
		return nil, false
	}
	if err := h.repos.CheckRepoWrite(c.Request.Context(), r, viewer(c)); err != nil {
		writeErr(c, err)
		return nil, false
	}
	return r, true
}

// CreateBranch handles POST /api/{type}s/{ns}/{name}/branch[/{branch}].
// The branch name comes from the path when present, otherwise the body.
func (h *BranchHandler) CreateBranch(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	var req model.CreateBranchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	if name := c.Param("branch"); name != "" {
		req.Branch = name
	}

	if err := h.branches.CreateBranch(c.Request.Context(), r, &req); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success: true,
		Message: "branch " + req.Branch + " created",
	})
}

// DeleteBranch handles DELETE /api/{type}s/{ns}/{name}/branch/{branch}.
func (h *BranchHandler) DeleteBranch(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	name := c.Param("branch")
	if err := h.branches.DeleteBranch(c.Request.Context(), r, name); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success: true,
		Message: "branch " + name + " deleted",
	})
}

// CreateTag handles POST /api/{type}s/{ns}/{name}/tag[/{tag}].
func (h *BranchHandler) CreateTag(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	var req model.CreateTagRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	if name := c.Param("tag"); name != "" {
		req.Tag = name
	}

	commitID, err := h.branches.CreateTag(c.Request.Context(), r, &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success:  true,
		Message:  "tag " + req.Tag + " created",
		CommitID: commitID,
	})
}

// DeleteTag handles DELETE /api/{type}s/{ns}/{name}/tag/{tag}.
func (h *BranchHandler) DeleteTag(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	name := c.Param("tag")
	if err := h.branches.DeleteTag(c.Request.Context(), r, name); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success: true,
		Message: "tag " + name + " deleted",
	})
}

// Revert handles POST /api/{type}s/{ns}/{name}/branch/{branch}/revert.
func (h *BranchHandler) Revert(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	var req model.RevertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	head, err := h.branches.Revert(c.Request.Context(), viewer(c), r, c.Param("branch"), &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success:  true,
		Message:  "reverted " + req.Ref,
		CommitID: head,
	})
}

// Reset handles POST /api/{type}s/{ns}/{name}/branch/{branch}/reset. A reset
// blocked by unrecoverable LFS content answers 400 with the missing paths.
func (h *BranchHandler) Reset(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	var req model.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	head, blocked, err := h.branches.Reset(c.Request.Context(), viewer(c), r, c.Param("branch"), &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	if blocked != nil {
		c.JSON(http.StatusBadRequest, blocked)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success:  true,
		Message:  "reset to " + req.Ref,
		CommitID: head,
	})
}

// Merge handles POST /api/{type}s/{ns}/{name}/merge/{src}/into/{dst}.
func (h *BranchHandler) Merge(c *gin.Context) {
	r, ok := h.writableRepo(c)
	if !ok {
		return
	}

	var req model.MergeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	src, dst := c.Param("src"), c.Param("dst")
	head, err := h.branches.Merge(c.Request.Context(), viewer(c), r, src, dst, &req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OperationResponse{
		Success:  true,
		Message:  "merged " + src + " into " + dst,
		CommitID: head,
	})
}
