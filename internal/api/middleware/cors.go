package middleware

import (
	"net/http"
	"strings"

	"ledgercore/internal/pkg/config"

	"github.com/gin-gonic/gin"
)

// CORS adds Cross-Origin Resource Sharing headers, unchanged in shape
// from the teacher's src/diplomat/middleware/cors.go.
func CORS(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, o := range cfg.CORS.AllowOrigins {
			if o == "*" || o == origin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", o)
				break
			}
		}
		if !allowed && len(cfg.CORS.AllowOrigins) > 0 {
			c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORS.AllowOrigins[0])
		}

		if cfg.CORS.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowHeaders, ", "))
		c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowMethods, ", "))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
