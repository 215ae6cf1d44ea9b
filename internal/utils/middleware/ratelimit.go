package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kohakuhub/server/internal/port/outbound"
	"github.com/kohakuhub/server/internal/shared/response"
	"golang.org/x/crypto/sha3"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RateLimitReset is the header for reset time.
	RateLimitReset = "X-RateLimit-Reset"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Limit is the maximum number of requests.
	Limit int
	// Window is the time window.
	Window time.Duration
	// KeyFunc generates the rate limit key from request.
	// Default keys by user when authenticated, client IP otherwise.
	KeyFunc func(*gin.Context) string
	// SkipFunc determines if the request should skip rate limiting.
	SkipFunc func(*gin.Context) bool
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   300,
		Window:  time.Minute,
		KeyFunc: defaultRateLimitKey,
	}
}

func defaultRateLimitKey(c *gin.Context) string {
	if userID := GetUserID(c); userID != 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	// Unauthenticated requests with a token still get a stable bucket
	// so a flood of bad tokens cannot rotate keys.
	if token := ExtractToken(c); token != "" {
		sum := sha3.Sum512([]byte(token))
		return "token:" + strconv.FormatUint(uint64(sum[0])<<8|uint64(sum[1]), 16)
	}
	return "ip:" + c.ClientIP()
}

// RateLimit returns a middleware that limits requests using the given limiter.
func RateLimit(limiter outbound.RateLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultRateLimitKey
	}

	return func(c *gin.Context) {
		// Skip if limiter is nil
		if limiter == nil {
			c.Next()
			return
		}

		// Check skip function
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		ctx := c.Request.Context()

		// Check rate limit
		allowed, err := limiter.Allow(ctx, key, cfg.Limit, cfg.Window)
		if err != nil {
			// On limiter failure, let the request through
			c.Next()
			return
		}

		// Get remaining count
		remaining, _ := limiter.Remaining(ctx, key, cfg.Limit, cfg.Window)

		// Set headers
		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))
		c.Header(RateLimitReset, strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, "too many requests, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
