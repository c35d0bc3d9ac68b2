package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID attaches a request identifier to the context and response so
// generation failures in logs can be correlated with API calls.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
