package middleware

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST carrying an
// Idempotency-Key the same caller already used. It must run after
// CallerIdentity. Store failures fall through to normal processing.
func Idempotency(store redis.IdempotencyStoreInterface, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		callerID := CallerID(c)
		if key == "" || callerID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cached, ok, err := store.GetResponse(ctx, callerID, key)
		if err != nil {
			logger.WarnContext(ctx, "idempotency lookup failed", "caller_id", callerID, "err", err)
			c.Next()
			return
		}
		if ok {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header(replayedHeader, "true")
			contentType := cached.Headers.Get("Content-Type")
			if contentType == "" {
				contentType = "application/json; charset=utf-8"
			}
			c.Data(cached.StatusCode, contentType, cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are not replayed so a retry can succeed.
		status := c.Writer.Status()
		if status < 200 || status >= 500 {
			return
		}
		resp := &redis.CachedResponse{
			StatusCode: status,
			Body:       w.body.Bytes(),
			Headers:    extractResponseHeaders(c),
		}
		if err := store.SetResponse(ctx, callerID, key, resp, redis.IdempotencyTTL); err != nil {
			logger.WarnContext(ctx, "idempotency store failed", "caller_id", callerID, "err", err)
		}
	}
}

// extractResponseHeaders keeps only Content-Type.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
