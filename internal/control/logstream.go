// Live log tailing over a websocket. Each connected viewer follows one
// level's log file independently from its own read position, so there is
// no broadcast hub here, just an upgrade and a poll loop per connection.
package control

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// streamPollInterval bounds how quickly a live log viewer sees a newly
// written line.
const streamPollInterval = 500 * time.Millisecond

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (c *ControlSurface) handleLogStreamDefault(w http.ResponseWriter, r *http.Request) {
	c.streamLogs(w, r, "info")
}

func (c *ControlSurface) handleLogStream(w http.ResponseWriter, r *http.Request) {
	c.streamLogs(w, r, chi.URLParam(r, "level"))
}

// streamLogs upgrades to a websocket connection and pushes every chunk
// appended to the named level's log file until the client disconnects.
// Invalid levels are rejected before the upgrade, the same validation
// handleLogs applies to the plain-text endpoint.
func (c *ControlSurface) streamLogs(w http.ResponseWriter, r *http.Request, level string) {
	if level == "" {
		level = "info"
	}
	level = strings.ToLower(level)
	switch level {
	case "info", "warning", "error":
	default:
		http.Error(w, fmt.Sprintf("invalid log level %q", level), http.StatusBadRequest)
		return
	}

	offset, err := c.logFiles.Size(level)
	if err != nil {
		c.logger.Error("failed to stat log file for streaming", "level", level, "error", err)
		http.Error(w, "log file unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Error("failed to upgrade log stream", "level", level, "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			// The viewer never sends anything meaningful; reading only
			// detects the close frame so the tail loop below can stop.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			chunk, next, err := c.logFiles.Tail(level, offset)
			if err != nil {
				c.logger.Error("failed to tail log file", "level", level, "error", err)
				return
			}
			if len(chunk) == 0 {
				continue
			}
			offset = next
			if err := conn.WriteMessage(websocket.TextMessage, chunk); err != nil {
				return
			}
		}
	}
}
