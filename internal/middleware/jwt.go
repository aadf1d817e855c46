package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
	"github.com/noah-isme/mind-analytics-api/pkg/logger"
	"github.com/noah-isme/mind-analytics-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal := claims.Principal()
		c.Set(ContextUserKey, claims)
		c.Set(logger.IdentityKey, principal.Identity)
		c.Set(logger.RoleKey, string(principal.Role))
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated caller stored by JWT.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Principal{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil {
		return models.Principal{}, false
	}
	return claims.Principal(), true
}
