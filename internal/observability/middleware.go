package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	ctxPayloadType = "meshdecode.payload_type"
	ctxPacketValid = "meshdecode.packet_valid"
	ctxPacketBytes = "meshdecode.packet_bytes"
)

// AnnotatePacket attaches the outcome of a decode to the request so the
// request log line carries it.
func AnnotatePacket(c *gin.Context, payloadType string, valid bool, size int) {
	c.Set(ctxPayloadType, payloadType)
	c.Set(ctxPacketValid, valid)
	c.Set(ctxPacketBytes, size)
}

// RequestLogger writes one http_request line per request. Decode routes that
// call AnnotatePacket also get payload_type, valid and packet_bytes.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())
		if pt := c.GetString(ctxPayloadType); pt != "" {
			event = event.
				Str("payload_type", pt).
				Bool("valid", c.GetBool(ctxPacketValid)).
				Int("packet_bytes", c.GetInt(ctxPacketBytes))
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.Last().Error())
		}
		event.Msg("http_request")
	}
}

func RequestMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		RecordHTTPRequest(service, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
