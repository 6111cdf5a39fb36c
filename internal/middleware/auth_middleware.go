package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/session"
)

const (
	UserIDContextKey    = "userID"
	PrincipalContextKey = "principal"
)

// Identity resolves the caller and makes them the session's active user for
// the rest of the request. A request without a bearer token acts as the guest.
func Identity(authService *service.AuthService, manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, apiErr := principalFrom(c, authService)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		release, err := manager.Begin(c.Request.Context(), principal)
		if err != nil {
			logger.HTTP().Error("activate session", "error", err)
			writeError(c, apperrors.Internal("failed to load session"))
			return
		}
		defer release()

		c.Set(UserIDContextKey, identity.Resolve(principal))
		if principal != nil {
			c.Set(PrincipalContextKey, principal)
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context, authService *service.AuthService) (*identity.Principal, *apperrors.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, apperrors.Unauthorized("invalid authorization format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return nil, apperrors.Unauthorized("invalid authorization format")
	}

	return authService.ParseToken(token)
}

func UserID(c *gin.Context) string {
	value, ok := c.Get(UserIDContextKey)
	if !ok {
		return ""
	}
	userID, ok := value.(string)
	if !ok {
		return ""
	}
	return userID
}

// Principal returns the signed-in caller, or nil for the guest.
func Principal(c *gin.Context) *identity.Principal {
	value, ok := c.Get(PrincipalContextKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*identity.Principal)
	return principal
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
			"details": apiErr.Details,
		},
	})
}
