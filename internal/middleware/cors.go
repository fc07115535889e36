package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the web client at origin to call the API. "*" allows any
// origin.
func CORS(origin string) gin.HandlerFunc {
	allowed := strings.TrimRight(origin, "/")
	return func(c *gin.Context) {
		reqOrigin := c.GetHeader("Origin")
		switch {
		case allowed == "*":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case reqOrigin != "" && reqOrigin == allowed:
			c.Writer.Header().Set("Access-Control-Allow-Origin", reqOrigin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
