package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"go.uber.org/zap"
)

const sseHeartbeat = 15 * time.Second

// StreamChannelEvents relays the head events of the user's current channel as
// server-sent events. The stream ends after HeadIsClosed.
func (s *Server) StreamChannelEvents(c *gin.Context) {
	if s.bus == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	channel, ok := s.channels.FindAnyByUser(userID)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.Set("head_id", channel.HeadID)

	subscription, backlog, err := s.bus.Subscribe(channel.HeadID, 0)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	for _, event := range backlog {
		if err := writeHeadEvent(writer, event); err != nil {
			return
		}
		if event.Tag == hydra.TagHeadIsClosed {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-subscription.Events():
			if !open {
				return
			}
			if err := writeHeadEvent(writer, event); err != nil {
				s.log.Debug("event stream write failed", zap.String("head_id", channel.HeadID), zap.Error(err))
				return
			}
			flusher.Flush()
			if event.Tag == hydra.TagHeadIsClosed {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeHeadEvent(w io.Writer, event hydra.HeadEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Tag, data)
	return err
}
