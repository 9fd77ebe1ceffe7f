package server

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// stream writes every event as an SSE data frame, flushing after each one.
// A failed write means the client is gone; leaving the loop stops the
// producer.
func stream[E any](c *gin.Context, logger *slog.Logger, events iter.Seq[E]) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	logger = logger.With("job_id", c.GetString(jobIDKey))
	frames := 0
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("failed to encode event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			logger.Info("client disconnected", "frames", frames)
			return
		}
		c.Writer.Flush()
		frames++
	}
	logger.Debug("stream finished", "frames", frames)
}
