package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Cache"

const responseMetaKey = "response_meta"

// responseMeta collects envelope metadata contributed by middleware and handlers.
type responseMeta struct {
	started time.Time
	values  map[string]interface{}
}

// WithResponseMeta starts the per-request metadata collector.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the payload came from the cache, in both the X-Cache header and the meta block.
func SetCacheHit(c *gin.Context, hit bool) {
	status := "MISS"
	if hit {
		status = "HIT"
	}
	c.Header(CacheHeader, status)
	metaFor(c).values["cache_hit"] = hit
}

// ExtractMeta returns the collected metadata with processing_time_ms filled in.
// It returns nil when no metadata was collected for the request.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(*responseMeta)
	if !ok {
		return nil
	}
	if !meta.started.IsZero() {
		meta.values["processing_time_ms"] = time.Since(meta.started).Milliseconds()
	}
	return meta.values
}

func metaFor(c *gin.Context) *responseMeta {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(*responseMeta); ok {
			return meta
		}
	}
	meta := &responseMeta{values: map[string]interface{}{}}
	c.Set(responseMetaKey, meta)
	return meta
}
