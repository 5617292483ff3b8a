package middleware

import (
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/gin-gonic/gin"
)

// Tracing opens a transaction per request and makes it reachable through the
// request context
func Tracing(tracer tracing.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}

		txn := tracer.StartTransaction(c.Request.Method + " " + name)
		defer tracer.EndTransaction(txn)

		c.Request = c.Request.WithContext(tracing.NewContext(c.Request.Context(), txn))
		c.Next()

		tracer.AddAttribute(txn, "http.status", c.Writer.Status())
		if last := c.Errors.Last(); last != nil {
			tracer.RecordError(txn, last.Err)
		}
	}
}
