package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, " + RequestIDHeader
)

// CORS allows the configured origins. An empty list or "*" allows any origin.
// Matching is case-insensitive and echoes the configured spelling.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]string, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if !allowAll {
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
			return
		}

		allowOrigin := ""
		if allowAll {
			allowOrigin = "*"
		} else if orig, ok := allowed[strings.ToLower(origin)]; ok {
			allowOrigin = orig
		}

		if !allowAll {
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Writer.Header().Add("Vary", "Access-Control-Request-Method")
			c.Writer.Header().Add("Vary", "Access-Control-Request-Headers")
			if allowOrigin != "" {
				c.Header("Access-Control-Allow-Origin", allowOrigin)
				c.Header("Access-Control-Allow-Methods", corsMethods)
				c.Header("Access-Control-Allow-Headers", corsHeaders)
				c.Header("Access-Control-Max-Age", "600")
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		}
		c.Next()
	}
}
