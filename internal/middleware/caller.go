package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CallerHeader carries the identity established by the authenticating proxy.
	CallerHeader = "X-Caller-ID"

	callerKey = "callerID"
)

// CallerIdentity rejects requests without a caller id and stores it on the context.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CallerHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + CallerHeader + " header",
				"code":  "unauthenticated",
			})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

// CallerID returns the caller set by CallerIdentity, or "".
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
