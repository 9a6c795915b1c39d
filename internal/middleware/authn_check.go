package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"io.winapps.huddle/internal/db"
)

const sessionCacheTTL = 10 * time.Minute

// SessionResolver maps a bearer session token to a user id.
type SessionResolver interface {
	UserIDForSession(ctx context.Context, token string) (string, error)
}

// IDTokenVerifier is the last-resort check for tokens that are not local
// sessions, e.g. Firebase ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (string, error)
}

// AuthConfig wires the lookups used by AuthMiddleware. Cache and Verifier
// are optional.
type AuthConfig struct {
	Sessions SessionResolver
	Cache    *redis.Client
	Verifier IDTokenVerifier
	Logger   *zap.SugaredLogger
}

// AuthMiddleware resolves the bearer token and sets "uid" in the context
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with 'Bearer '"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
			return
		}

		ctx := c.Request.Context()
		userUID := lookupCachedSession(ctx, cfg.Cache, token)

		if userUID == "" && cfg.Sessions != nil {
			uid, err := cfg.Sessions.UserIDForSession(ctx, token)
			switch {
			case err == nil:
				userUID = uid
				cacheSession(ctx, cfg.Cache, token, uid, logger)
			case !errors.Is(err, db.ErrSessionNotFound):
				logger.Errorw("session lookup failed", "request_id", c.GetString("request_id"), "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate token"})
				return
			}
		}

		if userUID == "" && cfg.Verifier != nil {
			if uid, err := cfg.Verifier.VerifyIDToken(ctx, token); err == nil {
				userUID = uid
			}
		}

		if userUID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("uid", userUID)
		c.Next()
	}
}

func sessionCacheKey(token string) string {
	return "session:" + token
}

func lookupCachedSession(ctx context.Context, cache *redis.Client, token string) string {
	if cache == nil {
		return ""
	}
	uid, err := cache.Get(ctx, sessionCacheKey(token)).Result()
	if err != nil {
		return ""
	}
	return uid
}

func cacheSession(ctx context.Context, cache *redis.Client, token, uid string, logger *zap.SugaredLogger) {
	if cache == nil {
		return
	}
	if err := cache.Set(ctx, sessionCacheKey(token), uid, sessionCacheTTL).Err(); err != nil {
		logger.Warnw("caching session failed", "error", err)
	}
}
