package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

// ContextAdminKey is the gin context key storing the verified admin identity.
const ContextAdminKey = "currentAdmin"

type adminVerifier interface {
	Verify(ctx context.Context, sid string) (service.GuardResult, error)
}

// AdminGuard lets a request through only when the session holds a live admin login.
// Everything else is answered with 401 and a redirect hint to the login page.
func AdminGuard(guard adminVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := SessionID(c)
		if sid == "" {
			response.Abort(c, appErrors.ErrUnauthorized, loginRedirect(service.GuardReasonNotLoggedIn))
			return
		}

		result, err := guard.Verify(c.Request.Context(), sid)
		if err != nil {
			response.Abort(c, err)
			return
		}
		if !result.Authenticated() {
			response.Abort(c, guardError(result.Reason), loginRedirect(result.Reason))
			return
		}

		c.Set(ContextAdminKey, result)
		c.Next()
	}
}

// RequireAdminRole restricts a guarded route to the listed admin roles.
func RequireAdminRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		admin, ok := CurrentAdmin(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized, loginRedirect(service.GuardReasonNotLoggedIn))
			return
		}
		if _, ok := allowed[admin.Role]; !ok {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// CurrentAdmin returns the identity stored by AdminGuard.
func CurrentAdmin(c *gin.Context) (service.GuardResult, bool) {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return service.GuardResult{}, false
	}
	result, ok := value.(service.GuardResult)
	return result, ok
}

func guardError(reason string) error {
	switch reason {
	case service.GuardReasonExpired:
		return appErrors.ErrSessionExpired
	case service.GuardReasonUnknownAdmin:
		return appErrors.Clone(appErrors.ErrUnauthorized, "admin account not found")
	default:
		return appErrors.ErrUnauthorized
	}
}
