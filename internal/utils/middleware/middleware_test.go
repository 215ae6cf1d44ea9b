package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kohakuhub/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	t.Run("generates new request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			requestID := GetRequestID(c)
			c.String(http.StatusOK, requestID)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		// Check response header
		headerID := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, headerID)
		// Check body matches header
		assert.Equal(t, headerID, w.Body.String())
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			requestID := GetRequestID(c)
			c.String(http.StatusOK, requestID)
		})

		existingID := "existing-request-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, existingID, w.Header().Get(RequestIDHeader))
		assert.Equal(t, existingID, w.Body.String())
	})

	t.Run("falls back to the client trace ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(TraceIDHeader, "trace-4711")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, "trace-4711", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces oversized or non-printable IDs", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		for _, bad := range []string{strings.Repeat("a", 200), "tab\tseparated"} {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set(RequestIDHeader, bad)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, got)
			assert.NotEqual(t, bad, got)
		}
	})
}

func TestGetRequestID(t *testing.T) {
	t.Run("returns empty string when not set", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		id := GetRequestID(c)
		assert.Empty(t, id)
	})

	t.Run("returns request ID when set", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(RequestIDKey, "test-id")
		id := GetRequestID(c)
		assert.Equal(t, "test-id", id)
	})
}

func TestLogging(t *testing.T) {
	serve := func(log *zap.Logger, status int, target string) {
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logging(log))
		router.GET("/test", func(c *gin.Context) {
			c.String(status, "done")
		})

		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("User-Agent", "TestAgent/1.0")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	t.Run("logs successful requests at info", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		serve(zap.New(core), http.StatusOK, "/test?foo=bar")

		entries := logs.FilterMessage("HTTP Request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

		fields := entries[0].ContextMap()
		assert.Equal(t, int64(http.StatusOK), fields["status"])
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/test", fields["path"])
		assert.Equal(t, "foo=bar", fields["query"])
		assert.Equal(t, "TestAgent/1.0", fields["user_agent"])
		assert.NotEmpty(t, fields["request_id"])
	})

	t.Run("logs 4xx requests as warnings", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		serve(zap.New(core), http.StatusNotFound, "/test")

		entries := logs.FilterMessage("HTTP Request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("logs 5xx requests as errors", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		serve(zap.New(core), http.StatusBadGateway, "/test")

		entries := logs.FilterMessage("HTTP Request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	})
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)

		router := gin.New()
		router.Use(Recovery(zap.New(core)))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req := httptest.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		// Should not panic
		require.NotPanics(t, func() {
			router.ServeHTTP(w, req)
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "internal server error")

		entries := logs.FilterMessage("Panic recovered").All()
		require.Len(t, entries, 1)
	})

	t.Run("uses no-op logger when nil", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(nil))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req := httptest.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		require.NotPanics(t, func() {
			router.ServeHTTP(w, req)
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

type stubAuthenticator struct {
	users map[string]*model.User
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*model.User, error) {
	if user, ok := s.users[token]; ok {
		return user, nil
	}
	return nil, errors.New("unknown token")
}

func TestAuth(t *testing.T) {
	alice := &model.User{ID: 7, Username: "alice"}
	auth := &stubAuthenticator{users: map[string]*model.User{"tok-alice": alice}}

	newRouter := func(optional bool) *gin.Engine {
		router := gin.New()
		router.Use(Auth(auth, optional))
		router.GET("/whoami", func(c *gin.Context) {
			c.String(http.StatusOK, GetUsername(c))
		})
		return router
	}

	t.Run("accepts bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"tok-alice")
		w := httptest.NewRecorder()

		newRouter(false).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	})

	t.Run("accepts basic auth password as token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		cred := base64.StdEncoding.EncodeToString([]byte("alice:tok-alice"))
		req.Header.Set(AuthorizationHeader, BasicPrefix+cred)
		w := httptest.NewRecorder()

		newRouter(false).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	})

	t.Run("rejects missing token when required", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		w := httptest.NewRecorder()

		newRouter(false).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", w.Header().Get("X-Error-Code"))
	})

	t.Run("rejects bad token when required", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"tok-mallory")
		w := httptest.NewRecorder()

		newRouter(false).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("optional auth passes anonymous", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		w := httptest.NewRecorder()

		newRouter(true).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("optional auth ignores bad token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"tok-mallory")
		w := httptest.NewRecorder()

		newRouter(true).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestAdminAuth(t *testing.T) {
	newRouter := func(enabled bool, token string) *gin.Engine {
		router := gin.New()
		router.Use(AdminAuth(enabled, token))
		router.GET("/admin/stats", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	t.Run("accepts correct token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/stats", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"s3cret")
		w := httptest.NewRecorder()

		newRouter(true, "s3cret").ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/stats", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"guess")
		w := httptest.NewRecorder()

		newRouter(true, "s3cret").ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects when token unset", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/stats", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"")
		w := httptest.NewRecorder()

		newRouter(true, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("404 when disabled", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/stats", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"s3cret")
		w := httptest.NewRecorder()

		newRouter(false, "s3cret").ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type stubLimiter struct {
	allowed   bool
	remaining int
	err       error
}

func (s *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return s.allowed, s.err
}

func (s *stubLimiter) Remaining(context.Context, string, int, time.Duration) (int, error) {
	return s.remaining, nil
}

func TestRateLimit(t *testing.T) {
	newRouter := func(limiter *stubLimiter) *gin.Engine {
		router := gin.New()
		router.Use(RateLimit(limiter, RateLimitConfig{Limit: 10, Window: time.Minute}))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	t.Run("allows under limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubLimiter{allowed: true, remaining: 9}).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get(RateLimitLimit))
		assert.Equal(t, "9", w.Header().Get(RateLimitRemaining))
	})

	t.Run("rejects over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubLimiter{allowed: false}).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get(RetryAfter))
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubLimiter{err: errors.New("redis down")}).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil limiter passes through", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimit(nil, DefaultRateLimitConfig()))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("creates cors middleware without error", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		middleware := CORS(cfg)
		assert.NotNil(t, middleware)
	})

	t.Run("default config exposes hub error headers", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		assert.Contains(t, cfg.ExposeHeaders, "X-Error-Code")
		assert.Contains(t, cfg.ExposeHeaders, "X-Error-Message")
		assert.Contains(t, cfg.AllowHeaders, "Authorization")
		assert.False(t, cfg.AllowCredentials)
	})
}

func TestExtractToken(t *testing.T) {
	newCtx := func(header string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		if header != "" {
			c.Request.Header.Set(AuthorizationHeader, header)
		}
		return c
	}

	assert.Equal(t, "tok", ExtractToken(newCtx(BearerPrefix+"tok")))
	assert.Equal(t, "", ExtractToken(newCtx("")))
	assert.Equal(t, "", ExtractToken(newCtx("Token abc")))

	basic := base64.StdEncoding.EncodeToString([]byte("user:pass:word"))
	assert.Equal(t, "pass:word", ExtractToken(newCtx(BasicPrefix+basic)))

	assert.Equal(t, "", ExtractToken(newCtx(BasicPrefix+"!!notbase64")))
}
