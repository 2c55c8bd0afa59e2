package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"
)

// TraceID tags every request with a trace ID. An incoming X-Trace-ID is
// reused only when it is a well-formed UUID; anything else is replaced.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(TraceIDHeader))
		if err != nil {
			id = uuid.New()
		}
		traceID := id.String()
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID returns the request's trace ID, or "".
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
