package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextUserIDKey   = "userID"
	ContextUserRoleKey = "userRole"
)

// MsgRateLimited is returned with every 429.
const MsgRateLimited = "Too many uploads. Please wait a few minutes and try again."

// jwtClaims is the token payload issued by the auth service: the user id in
// "sub" and the role in "role".
type jwtClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		if !token.Valid || claims.Subject == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		role := claims.Role
		if role == "" {
			role = domain.RoleUser
		}
		c.Set(ContextUserIDKey, claims.Subject)
		c.Set(ContextUserRoleKey, role)
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// principalFromContext returns the caller set by AuthMiddleware. The zero
// Principal is returned for anonymous requests.
func principalFromContext(c *gin.Context) domain.Principal {
	var p domain.Principal
	if id, ok := c.Get(ContextUserIDKey); ok {
		p.UserID, _ = id.(string)
	}
	if role, ok := c.Get(ContextUserRoleKey); ok {
		p.Role, _ = role.(domain.Role)
	}
	return p
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Errorw("Request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warnw("Request rejected", fields...)
		default:
			log.Infow("Request handled", fields...)
		}
	}
}

// rateLimitIdentity buckets authenticated callers by user and everyone
// else by client IP.
func rateLimitIdentity(c *gin.Context) string {
	if p := principalFromContext(c); p.UserID != "" {
		return "user:" + p.UserID
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware enforces the budget of class. It must run after
// AuthMiddleware so callers are counted per user. Store failures admit the
// request.
func RateLimitMiddleware(limiter *ratelimit.Limiter, class ratelimit.Class, rec *metrics.Recorder, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		decision, err := limiter.Allow(c.Request.Context(), class, rateLimitIdentity(c))
		if err != nil {
			log.Warnw("Rate limit check failed, admitting request", "class", class, "error", err)
			c.Next()
			return
		}

		resetIn := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetIn))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(resetIn))
			rec.RecordRateLimited(string(class))
			abortWithError(c, http.StatusTooManyRequests, MsgRateLimited)
			return
		}
		c.Next()
	}
}
