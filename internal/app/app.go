// Package app wires configuration, stores, domains and the HTTP router into
// a runnable hub service.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	httpadapter "github.com/kohakuhub/server/internal/adapter/http"
	"github.com/kohakuhub/server/internal/adapter/outbound/lakefs"
	"github.com/kohakuhub/server/internal/adapter/outbound/memory"
	"github.com/kohakuhub/server/internal/adapter/outbound/postgres"
	redisadapter "github.com/kohakuhub/server/internal/adapter/outbound/redis"
	"github.com/kohakuhub/server/internal/adapter/outbound/s3"
	"github.com/kohakuhub/server/internal/domain/auth"
	"github.com/kohakuhub/server/internal/shared/cache"
	"github.com/kohakuhub/server/internal/domain/branch"
	"github.com/kohakuhub/server/internal/domain/commit"
	"github.com/kohakuhub/server/internal/domain/gc"
	"github.com/kohakuhub/server/internal/domain/gitbridge"
	"github.com/kohakuhub/server/internal/domain/lfs"
	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	"github.com/kohakuhub/server/internal/shared/config"
	"github.com/kohakuhub/server/internal/shared/database"
	"github.com/kohakuhub/server/internal/shared/logger"
	"github.com/kohakuhub/server/internal/utils/metrics"
	"github.com/kohakuhub/server/internal/utils/middleware"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App owns every long-lived resource of the service.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  redis.UniversalClient
	router *gin.Engine
}

// New builds the application: logger, database, blob and versioned stores,
// caches, domains and the router. Domains are hand-wired; the gc domain
// doubles as the commit engine's LFS tracker, the branch domain's history
// sync and the repo domain's storage cleaner, while the repo domain serves
// as quota checker and usage ledger for LFS and commits.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	blobs, err := s3.New(&cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	lakefsClient, err := lakefs.NewClient(&cfg.LakeFS)
	if err != nil {
		return nil, fmt.Errorf("versioned store: %w", err)
	}
	store := lakefs.NewVersionedStoreAdapter(lakefsClient)

	// Redis backs the principal cache, confirmation tokens and rate
	// limiting when configured; single-process in-memory versions
	// otherwise.
	var (
		redisClient redis.UniversalClient
		principals  outbound.PrincipalCache
		confirms    outbound.ConfirmationStore
		limiter     outbound.RateLimiter
	)
	if cfg.Redis.Address != "" {
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		principals = redisadapter.NewPrincipalCache(redisClient)
		confirms = redisadapter.NewConfirmationStore(redisClient)
		limiter = redisadapter.NewRateLimiter(redisClient)
	} else {
		principals = memory.NewPrincipalCache()
		confirms = memory.NewConfirmationStore()
		limiter = memory.NewRateLimiter()
	}

	users := postgres.NewUserAdapter(db)
	tokens := postgres.NewTokenAdapter(db)
	repos := postgres.NewRepoAdapter(db)
	files := postgres.NewFileAdapter(db)
	commits := postgres.NewCommitAdapter(db)
	staging := postgres.NewStagingAdapter(db)
	lfsHistory := postgres.NewLFSHistoryAdapter(db)

	defaultRules := model.LFSRules{
		ThresholdBytes: cfg.LFS.ThresholdBytes,
		SuffixPatterns: cfg.LFS.SuffixPatterns,
		KeepVersions:   cfg.LFS.KeepVersions,
	}

	gcDomain := gc.NewDomain(files, lfsHistory, blobs, store, &gc.Config{
		NamespacePrefix: cfg.App.NamespacePrefix,
		AutoGC:          cfg.LFS.AutoGC,
		DefaultRules:    defaultRules,
	}, log)

	repoDomain := repo.NewDomain(repos, users, files, commits, store, blobs, gcDomain, &repo.Config{
		BaseURL:         cfg.App.BaseURL,
		NamespacePrefix: cfg.App.NamespacePrefix,
		DefaultBranch:   cfg.App.DefaultBranch,
		DownloadExpiry:  cfg.LFS.DownloadExpiry,
	}, log)

	authDomain := auth.NewDomain(tokens, users, principals, log)

	lfsDomain := lfs.NewDomain(files, staging, blobs, repoDomain, &lfs.Config{
		BaseURL:                 cfg.App.BaseURL,
		MultipartThresholdBytes: cfg.LFS.MultipartThresholdBytes,
		MultipartChunkBytes:     cfg.LFS.MultipartChunkBytes,
		UploadExpiry:            cfg.LFS.UploadExpiry,
		DownloadExpiry:          cfg.LFS.DownloadExpiry,
	}, log)

	commitDomain := commit.NewDomain(files, commits, store, blobs, gcDomain, repoDomain, &commit.Config{
		BaseURL:         cfg.App.BaseURL,
		NamespacePrefix: cfg.App.NamespacePrefix,
		DefaultRules:    defaultRules,
		PollAttempts:    cfg.Commit.PollAttempts,
		PollInterval:    cfg.Commit.PollInterval,
		MaxBodyBytes:    int(cfg.Commit.MaxBodyBytes),
	}, log)

	branchDomain := branch.NewDomain(store, commits, gcDomain, &branch.Config{
		NamespacePrefix: cfg.App.NamespacePrefix,
		DefaultBranch:   cfg.App.DefaultBranch,
	}, log)

	bridgeDomain := gitbridge.NewDomain(store, &gitbridge.Config{
		NamespacePrefix: cfg.App.NamespacePrefix,
		DefaultBranch:   cfg.App.DefaultBranch,
		BaseURL:         cfg.App.BaseURL,
	}, log)

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Config: httpadapter.RouterConfig{
			LogLevel:     cfg.Log.Level,
			Version:      Version,
			AdminEnabled: cfg.Admin.Enabled,
			AdminToken:   cfg.Admin.Token,
		},
		Repo:    httpadapter.NewRepoHandler(repoDomain),
		Commit:  httpadapter.NewCommitHandler(repoDomain, commitDomain),
		Branch:  httpadapter.NewBranchHandler(repoDomain, branchDomain),
		LFS:     httpadapter.NewLFSHandler(repoDomain, lfsDomain),
		Git:     httpadapter.NewGitHandler(repoDomain, bridgeDomain, log),
		Admin:   httpadapter.NewAdminHandler(users, repos, lfsHistory, blobs, confirms, repoDomain, log),
		Misc:    httpadapter.NewMiscHandler(authDomain, Version),
		Auth:    middleware.AuthenticatorFunc(authDomain.Authenticate),
		Limiter: limiter,
		Metrics: metrics.New(""),
		Logger:  log,
	})

	return &App{
		cfg:    cfg,
		logger: log,
		db:     db,
		redis:  redisClient,
		router: router,
	}, nil
}

// Router returns the HTTP handler to serve.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases connections. Safe to call once after the HTTP server has
// stopped.
func (a *App) Close() {
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("Database close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
