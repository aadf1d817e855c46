package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mind-analytics-api/internal/models"
	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
	"github.com/noah-isme/mind-analytics-api/pkg/response"
)

// RoleDenialRecorder counts rejected role checks.
type RoleDenialRecorder interface {
	RecordDenial(role models.Role)
}

// RequireRoles restricts a route to the listed roles.
func RequireRoles(recorder RoleDenialRecorder, roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[principal.Role]; ok {
			c.Next()
			return
		}
		if recorder != nil {
			recorder.RecordDenial(principal.Role)
		}
		response.Error(c, appErrors.Denied("role "+string(principal.Role)+" may not access this resource"))
		c.Abort()
	}
}
