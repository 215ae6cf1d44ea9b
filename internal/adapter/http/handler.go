// Package http exposes the hub over gin: the HuggingFace-compatible JSON
// API, the Git-LFS batch protocol, read-only Git smart-HTTP and the admin
// surface. Handlers resolve the repository, enforce permissions and delegate
// to the domains; error mapping is centralized in the response package.
package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
	"github.com/kohakuhub/server/internal/utils/middleware"
)

// repoRef identifies one repository from route parameters.
type repoRef struct {
	Type      model.RepoType
	Namespace string
	Name      string
}

func (r repoRef) fullID() string {
	return r.Namespace + "/" + r.Name
}

// repoTypeKey stores the bound repository type for a route group. Routes
// without a plural prefix (models live at the site root) leave it unset and
// fall back to the model type.
const repoTypeKey = "repo_type"

// bindRepoType fixes the repository type for every route under one group.
func bindRepoType(t model.RepoType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(repoTypeKey, t)
		c.Next()
	}
}

// repoFromPath reads the repository coordinates set by the route. The name
// segment may carry a ".git" suffix from git and git-lfs clients.
func repoFromPath(c *gin.Context) repoRef {
	ref := repoRef{
		Type:      model.RepoTypeModel,
		Namespace: c.Param("namespace"),
		Name:      strings.TrimSuffix(c.Param("name"), ".git"),
	}
	if t, ok := c.Get(repoTypeKey); ok {
		ref.Type = t.(model.RepoType)
	}
	return ref
}

// treePath normalizes a catch-all path parameter: gin keeps the leading
// slash, the domains expect a bare repo-relative path.
func treePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

// viewer returns the authenticated user, nil for anonymous requests.
func viewer(c *gin.Context) *model.User {
	return middleware.GetUser(c)
}

func writeErr(c *gin.Context, err error) {
	response.WriteError(c, err)
}
