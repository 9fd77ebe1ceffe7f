package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	jobIDHeader = "X-Job-Id"
	jobIDKey    = "job_id"
)

// observe logs every request and records it in the metrics when enabled.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RequestServed(c.Request.Method, route, c.Writer.Status(), elapsed)
		}
		s.logger.Debug("request served",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"job_id", c.GetString(jobIDKey),
			"duration", elapsed.Round(time.Millisecond))
	}
}

// jobID tags a streaming request with a fresh job id, echoed in the
// X-Job-Id response header.
func jobID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(jobIDKey, id)
		c.Header(jobIDHeader, id)
		c.Next()
	}
}
