package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
	"github.com/timmy/grievo/internal/logger"
)

const userKey = "user"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user on the Gin context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			status := errs.StatusOf(err)
			message := "Not authorized, token failed"
			if status == http.StatusUnauthorized {
				message = err.Error()
			} else {
				GetLogger(c).WithError(err).Error("Token verification failed")
			}
			c.AbortWithStatusJSON(status, gin.H{"message": message})
			return
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

// RequireAdmin allows only admin users. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not authorized as an admin"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil on public routes.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
