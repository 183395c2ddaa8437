package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/internal/models"
	"github.com/socialhub/internal/service"
	"github.com/socialhub/pkg/response"
)

const (
	// ContextKeyUser is the key for the authenticated user in gin context
	ContextKeyUser = "user"
	// ContextKeyToken is the key for the presented session token in gin context
	ContextKeyToken = "token"
)

// Authenticator resolves a session token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware creates a session token authentication middleware.
// The Authorization header may carry the token raw or as "Bearer <token>".
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := authHeader
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 {
			if strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(c, "invalid authorization header format")
				c.Abort()
				return
			}
			tokenString = strings.TrimSpace(parts[1])
		}

		user, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidToken) {
				LogError("Authentication failed: %v", err)
			}
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyToken, tokenString)

		c.Next()
	}
}

// GetUser gets the authenticated user from the gin context
func GetUser(c *gin.Context) *models.User {
	user, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	return user.(*models.User)
}

// GetToken gets the session token the request was authenticated with
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}
