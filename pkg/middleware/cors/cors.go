package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// New returns a CORS middleware for the SPA client. Origins are matched exactly
// or by a leading "*." wildcard on the host (https://*.example.app). Cookies are
// allowed, so the request origin is always echoed back instead of "*".
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	exact := make(map[string]struct{}, len(allowedOrigins))
	var suffixes []string
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(origin, "/")
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			suffixes = append(suffixes, scheme+"://|."+host)
			continue
		}
		exact[origin] = struct{}{}
	}

	allowed := func(origin string) bool {
		if allowAll {
			return true
		}
		origin = strings.TrimRight(origin, "/")
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, s := range suffixes {
			scheme, hostSuffix, _ := strings.Cut(s, "|")
			if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, hostSuffix) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Add("Vary", "Origin")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
