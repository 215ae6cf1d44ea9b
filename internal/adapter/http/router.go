package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	"github.com/kohakuhub/server/internal/utils/metrics"
	"github.com/kohakuhub/server/internal/utils/middleware"
)

// repoTypes drives the per-type route groups. Model repos are additionally
// reachable at the root, matching hub client URL conventions.
var repoTypes = []model.RepoType{
	model.RepoTypeModel,
	model.RepoTypeDataset,
	model.RepoTypeSpace,
}

// RouterConfig carries the settings the router needs.
type RouterConfig struct {
	LogLevel     string
	Version      string
	AdminEnabled bool
	AdminToken   string
}

// RouterDeps bundles handlers and cross-cutting dependencies.
type RouterDeps struct {
	Config RouterConfig

	Repo   *RepoHandler
	Commit *CommitHandler
	Branch *BranchHandler
	LFS    *LFSHandler
	Git    *GitHandler
	Admin  *AdminHandler
	Misc   *MiscHandler

	Auth    middleware.TokenAuthenticator
	Limiter outbound.RateLimiter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewRouter assembles the gin engine: global middleware, the hub API, file
// access, git smart-HTTP, LFS transfer endpoints and the admin surface.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Revision parameters arrive with URL-encoded slashes (refs%2Fconvert).
	r.UseRawPath = true

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter, middleware.DefaultRateLimitConfig()))
	}

	optional := middleware.OptionalAuth(d.Auth)
	required := middleware.RequireAuth(d.Auth)

	r.GET("/healthz", d.Misc.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// File access, git smart-HTTP and LFS transfer live outside /api. Each
	// repo type gets a static group; model repos clone at the root too, so
	// the same routes hang off a typed root group.
	for _, t := range repoTypes {
		registerContentRoutes(r.Group("/"+t.Plural(), bindRepoType(t)), &d, optional)
	}
	registerContentRoutes(r.Group("", bindRepoType(model.RepoTypeModel)), &d, optional)

	api := r.Group("/api")
	{
		api.GET("/whoami-v2", required, d.Misc.WhoAmI)
		api.POST("/validate-yaml", optional, d.Misc.ValidateYAML)

		repos := api.Group("/repos", required)
		{
			repos.POST("/create", d.Repo.Create)
			repos.DELETE("/delete", d.Repo.Delete)
			repos.POST("/move", d.Repo.Move)
			repos.POST("/squash", d.Repo.Squash)
		}

		for _, t := range repoTypes {
			registerHubRoutes(api.Group("/"+t.Plural(), bindRepoType(t)), &d, optional, required)
		}

		// LFS transfer aliases without a type segment default to models,
		// mirroring the clone-at-root convention.
		alias := api.Group("", bindRepoType(model.RepoTypeModel), optional)
		{
			alias.POST("/:namespace/:name/info/lfs/complete", d.LFS.Complete)
			alias.POST("/:namespace/:name/info/lfs/complete/:upload_id", d.LFS.Complete)
			alias.POST("/:namespace/:name/info/lfs/verify", d.LFS.Verify)
		}

		admin := api.Group("/admin", middleware.AdminAuth(d.Config.AdminEnabled, d.Config.AdminToken))
		{
			admin.GET("/users/:username", d.Admin.GetUser)
			admin.POST("/users", d.Admin.CreateUser)
			admin.PATCH("/users/:username/quota", d.Admin.SetQuota)
			admin.GET("/repos", d.Admin.ListRepos)
			admin.POST("/recalculate", d.Admin.Recalculate)
			admin.GET("/stats", d.Admin.Stats)
			admin.GET("/storage", d.Admin.BrowseStorage)
			admin.POST("/storage/delete-request", d.Admin.RequestStorageDelete)
			admin.DELETE("/storage", d.Admin.DeleteStorage)
		}
	}

	return r
}

// registerContentRoutes mounts resolve, git smart-HTTP and LFS transfer
// endpoints on one typed group. Git and LFS paths carry a ".git" suffix on
// the name segment; repoFromPath strips it.
func registerContentRoutes(g *gin.RouterGroup, d *RouterDeps, optional gin.HandlerFunc) {
	g.GET("/:namespace/:name/resolve/:rev/*path", optional, d.Repo.Resolve)
	g.HEAD("/:namespace/:name/resolve/:rev/*path", optional, d.Repo.Resolve)

	g.GET("/:namespace/:name/info/refs", optional, d.Git.InfoRefs)
	g.POST("/:namespace/:name/git-upload-pack", optional, d.Git.UploadPack)

	g.POST("/:namespace/:name/info/lfs/objects/batch", optional, d.LFS.Batch)
	g.POST("/:namespace/:name/info/lfs/complete", optional, d.LFS.Complete)
	g.POST("/:namespace/:name/info/lfs/complete/:upload_id", optional, d.LFS.Complete)
	g.POST("/:namespace/:name/info/lfs/verify", optional, d.LFS.Verify)
}

// registerHubRoutes mounts the HF-compatible API for one repo type.
func registerHubRoutes(g *gin.RouterGroup, d *RouterDeps, optional, required gin.HandlerFunc) {
	g.GET("", optional, d.Repo.List)
	g.GET("/:namespace/:name", optional, d.Repo.Info)
	g.GET("/:namespace/:name/revision/:rev", optional, d.Repo.Revision)
	g.GET("/:namespace/:name/tree/:rev", optional, d.Repo.Tree)
	g.GET("/:namespace/:name/tree/:rev/*path", optional, d.Repo.Tree)

	g.POST("/:namespace/:name/preupload/:rev", required, d.Commit.Preupload)
	g.POST("/:namespace/:name/commit/:branch", required, d.Commit.Commit)
	g.GET("/:namespace/:name/commits/:rev", optional, d.Commit.History)
	g.GET("/:namespace/:name/commit/:commit_id", optional, d.Commit.Detail)
	g.GET("/:namespace/:name/commit/:commit_id/diff", optional, d.Commit.Diff)

	g.POST("/:namespace/:name/branch", required, d.Branch.CreateBranch)
	g.POST("/:namespace/:name/branch/:branch", required, d.Branch.CreateBranch)
	g.DELETE("/:namespace/:name/branch/:branch", required, d.Branch.DeleteBranch)
	g.POST("/:namespace/:name/branch/:branch/revert", required, d.Branch.Revert)
	g.POST("/:namespace/:name/branch/:branch/reset", required, d.Branch.Reset)
	g.POST("/:namespace/:name/tag", required, d.Branch.CreateTag)
	g.POST("/:namespace/:name/tag/:tag", required, d.Branch.CreateTag)
	g.DELETE("/:namespace/:name/tag/:tag", required, d.Branch.DeleteTag)
	g.POST("/:namespace/:name/merge/:src/into/:dst", required, d.Branch.Merge)
}
