package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware wraps otelgin's span-per-request middleware with a
// second stage that runs inside the span's lifetime: for routes keyed
// by rule name (the dedup-window lookup), it tags the span with the
// rule so a trace backend can be filtered per rule without parsing the
// request path. Both stages must be registered together, in order —
// router.Use(tracing.GinMiddleware(name)...) — since the rule tag has
// to be set before otelgin's deferred span.End() runs.
func GinMiddleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		func(c *gin.Context) {
			if ruleName := c.Param("name"); ruleName != "" {
				trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("rule", ruleName))
			}
			c.Next()
		},
	}
}
