package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/logger"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the resolved session id.
const ContextSessionKey = logger.SessionIDKey

type sessionTokenParser interface {
	ParseToken(raw string) (string, error)
}

// RequireSession rejects requests without a valid session token.
func RequireSession(parser sessionTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized, loginRedirect(""))
			return
		}

		sid, err := parser.ParseToken(raw)
		if err != nil {
			response.Abort(c, err, loginRedirect(""))
			return
		}

		c.Set(ContextSessionKey, sid)
		c.Next()
	}
}

// Session attaches the session id when a valid token is present but does not block.
func Session(parser sessionTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		sid, err := parser.ParseToken(raw)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextSessionKey, sid)
		c.Next()
	}
}

// SessionID returns the session id attached by Session or RequireSession.
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionKey)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func loginRedirect(reason string) map[string]interface{} {
	meta := map[string]interface{}{"redirect": "/login"}
	if reason != "" {
		meta["reason"] = reason
	}
	return meta
}
