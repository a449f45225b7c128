package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

// BodyLimit caps inbound request body size. Requests declaring a larger
// Content-Length are rejected up front; chunked bodies are capped while
// streaming via MaxBytesReader, which makes the next read fail.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeRequestTooLarge,
					"request body exceeds the maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
