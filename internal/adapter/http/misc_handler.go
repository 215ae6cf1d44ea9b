package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/kohakuhub/server/internal/domain/auth"
	"github.com/kohakuhub/server/internal/model"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
	"github.com/kohakuhub/server/internal/shared/response"
)

// MiscHandler serves identity and utility endpoints.
type MiscHandler struct {
	auth    *auth.Domain
	version string
}

// NewMiscHandler creates a new misc handler.
func NewMiscHandler(authDomain *auth.Domain, version string) *MiscHandler {
	return &MiscHandler{auth: authDomain, version: version}
}

// WhoAmI handles GET /api/whoami-v2.
func (h *MiscHandler) WhoAmI(c *gin.Context) {
	user := viewer(c)
	if user == nil {
		writeErr(c, apperr.NotAuthenticated("authentication required"))
		return
	}
	out, err := h.auth.WhoAmI(c.Request.Context(), user)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ValidateYAML handles POST /api/validate-yaml. It checks the README
// front-matter block; content without one has no metadata and is valid.
func (h *MiscHandler) ValidateYAML(c *gin.Context) {
	var req model.ValidateYAMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	doc := frontMatter(req.Content)
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(doc), &parsed); err != nil {
		c.JSON(http.StatusOK, model.ValidateYAMLResponse{
			Valid:  false,
			Errors: []string{err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, model.ValidateYAMLResponse{Valid: true})
}

// Healthz handles GET /healthz.
func (h *MiscHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// frontMatter returns the YAML block between leading "---" fences, or the
// empty string when no fence opens the document.
func frontMatter(content string) string {
	norm := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(norm, "---\n") {
		return ""
	}
	rest := norm[len("---\n"):]
	if end := strings.Index(rest, "\n---"); end >= 0 {
		return rest[:end]
	}
	return rest
}
