package serve

import (
	"net/http"
	"strings"

	"github.com/chirino/chat-history/internal/accesslog"
	"github.com/gin-gonic/gin"
)

// originPolicy is the set of browser origins allowed to call the API.
type originPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

// newOriginPolicy parses a comma-separated origin list. An empty list or a
// "*" entry allows every origin.
func newOriginPolicy(csv string) originPolicy {
	p := originPolicy{origins: map[string]struct{}{}}
	for _, o := range strings.Split(csv, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.anyOrigin = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// corsMiddleware answers preflight requests itself and adds CORS headers
// for allowed origins. The API only uses GET and POST.
func corsMiddleware(p originPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := strings.TrimSpace(c.GetHeader("Origin")); p.allows(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+accesslog.RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", accesslog.RequestIDHeader)
			h.Set("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// maxBodySizeMiddleware caps request bodies at limit bytes. Zero disables it.
func maxBodySizeMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
