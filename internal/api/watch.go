package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/services"
)

const writeWait = 5 * time.Second

// WatchEvent is one message on a watch connection.
type WatchEvent struct {
	// Type is "snapshot" or "deleted".
	Type    string        `json:"type"`
	Running bool          `json:"running"`
	Job     *jobstore.Job `json:"job,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API binds to loopback by default and auth is token based.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) watchJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	job, err := s.manager.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	logger := logging.WithContext(ctx, s.logger).With(logging.JobID(id))
	logger.Debug("watch connected")

	// Incoming messages are ignored; the read loop only notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(event WatchEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(event) == nil
	}

	interval := s.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		if !job.UpdatedAt.Equal(last) {
			last = job.UpdatedAt
			if !send(WatchEvent{Type: "snapshot", Running: s.manager.Running(id), Job: job}) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-closed:
			logger.Debug("watch disconnected")
			return
		case <-ticker.C:
		}
		job, err = s.manager.Get(ctx, id)
		if errors.Is(err, services.ErrNotFound) {
			send(WatchEvent{Type: "deleted"})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job deleted"),
				time.Now().Add(writeWait))
			return
		}
		if err != nil {
			logger.Warn("watch lookup failed", logging.Error(err))
			return
		}
	}
}
