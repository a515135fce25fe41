package server

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
)

const writeWait = 5 * time.Second

// Only pages served from the loopback interface may open the stream.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := u.Hostname()
		if host == "localhost" {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	},
}

// scanMessage is one frame on /ws/scan.
type scanMessage struct {
	Type     string             `json:"type"`
	Progress *apps.ScanProgress `json:"progress,omitempty"`
	Result   *scanSummary       `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type scanSummary struct {
	Apps      int         `json:"apps"`
	FromCache bool        `json:"fromCache"`
	Fallback  bool        `json:"fallback"`
	Bucket    apps.Bucket `json:"bucket"`
}

// GET /ws/scan?force=1 runs a scan and streams its progress events,
// followed by a "done" or "error" frame. The connection is then closed.
func (s *Server) scanStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := func(msg scanMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	force := queryBool(c, "force", true)
	res, err := s.session.Load(c.Request.Context(), force, discovery.ProgressFunc(func(ev apps.ScanProgress) {
		send(scanMessage{Type: "progress", Progress: &ev})
	}))
	if err != nil {
		send(scanMessage{Type: "error", Error: err.Error()})
		return
	}
	send(scanMessage{Type: "done", Result: &scanSummary{
		Apps:      len(res.Apps),
		FromCache: res.FromCache,
		Fallback:  res.Fallback,
		Bucket:    res.Bucket,
	}})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete"),
		time.Now().Add(writeWait))
}
