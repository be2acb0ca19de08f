package middleware

import (
	"ledgercore/internal/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationIDHeader = "X-Correlation-ID"
	correlationIDKey    = "correlation_id"
)

// CorrelationID generalizes the teacher's request-scoped context
// middleware: every response carries an X-Correlation-ID, echoing the
// caller's value when supplied or minting a fresh UUID when absent, so
// a single request can be traced through logs, outbox events, and
// downstream Kafka messages.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Writer.Header().Set(correlationIDHeader, id)

		logging.Info("request started", map[string]interface{}{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"correlation_id": id,
		})

		c.Next()

		logging.Info("request completed", map[string]interface{}{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"correlation_id": id,
		})
	}
}

// GetCorrelationID retrieves the correlation ID stashed by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	if v, exists := c.Get(correlationIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
