package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gamegoo/socialgraph/config"
	"github.com/gin-gonic/gin"
)

const MemberIDKey = "member_id"

// MemberChecker reports whether a member may still act. It is satisfied by
// the social member directory.
type MemberChecker interface {
	IsActive(ctx context.Context, memberID int64) (bool, error)
}

// Auth validates the Bearer JWT token and rejects members that are no longer
// active. members may be nil to trust the token alone.
func Auth(sec config.SecurityConfig, members MemberChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr, ok := BearerToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil || claims.MemberID <= 0 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if members != nil {
			checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
			defer cancel()
			active, err := members.IsActive(checkCtx, claims.MemberID)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "member lookup failed"})
				return
			}
			if !active {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "member inactive"})
				return
			}
		}

		ctx.Set(MemberIDKey, claims.MemberID)
		ctx.Next()
	}
}

// BearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter used by EventSource clients.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), true
	}
	if tok := c.Query("token"); tok != "" {
		return tok, true
	}
	return "", false
}

// GetMemberID retrieves the authenticated member ID from the Gin context.
func GetMemberID(c *gin.Context) int64 {
	if v, exists := c.Get(MemberIDKey); exists {
		return v.(int64)
	}
	return 0
}
