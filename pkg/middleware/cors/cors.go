package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods  = "GET, POST, DELETE, OPTIONS"
	exposedHeaders  = "Content-Disposition, X-Request-ID, X-Cache"
	preflightMaxAge = "600"
)

// New returns CORS middleware for the marketing site and admin front-ends.
// An empty list allows every origin. Entries may use a leading wildcard label,
// e.g. "https://*.taxdesk.example", to match preview deployments.
func New(allowedOrigins []string) gin.HandlerFunc {
	matcher := newOriginMatcher(allowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && matcher.allows(origin):
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		case origin == "" && matcher.allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		}
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Expose-Headers", exposedHeaders)
		header.Set("Access-Control-Max-Age", preflightMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type originMatcher struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{allowAll: len(origins) == 0, exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			m.allowAll = true
			continue
		}
		if scheme, rest, ok := strings.Cut(origin, "://*."); ok {
			m.suffixes = append(m.suffixes, wildcardOrigin{scheme: scheme + "://", suffix: "." + rest})
			continue
		}
		m.exact[origin] = struct{}{}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.allowAll {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.suffixes {
		if strings.HasPrefix(origin, w.scheme) && strings.HasSuffix(origin, w.suffix) &&
			len(origin) > len(w.scheme)+len(w.suffix) {
			return true
		}
	}
	return false
}
