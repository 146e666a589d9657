package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/framewright/backend/internal/bridge"
	"github.com/framewright/backend/internal/config"
	"github.com/framewright/backend/internal/logging"
	"github.com/framewright/backend/internal/monitoring"
	"github.com/framewright/backend/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS layer
	},
}

// guestConn adapts one WebSocket connection to bridge.Guest. Writes are
// serialized; a write failure is invisible to the bridge, matching the
// fire-and-forget transport contract.
type guestConn struct {
	conn *websocket.Conn
	log  *logging.Logger

	writeMu sync.Mutex
	closed  bool
}

// Send implements bridge.Guest.
func (g *guestConn) Send(raw []byte) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.closed {
		return
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		g.log.Debug("guest write failed", zap.Error(err))
	}
}

func (g *guestConn) close() {
	g.writeMu.Lock()
	g.closed = true
	g.writeMu.Unlock()
	g.conn.Close()
}

// Handler manages guest WebSocket connections.
type Handler struct {
	sessions *registry.Manager
	log      *logging.Logger
	metrics  *monitoring.Metrics
	limits   config.RateLimitConfig
}

// NewHandler creates a WebSocket guest handler. metrics may be nil.
func NewHandler(sessions *registry.Manager, limits config.RateLimitConfig, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		sessions: sessions,
		log:      log,
		metrics:  metrics,
		limits:   limits,
	}
}

// HandleEditor upgrades the request and runs an editor guest session for
// the lifetime of the connection.
func (h *Handler) HandleEditor(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	guest := &guestConn{conn: conn, log: h.log}

	session := &registry.Session{
		Surface:   registry.SurfaceEditor,
		CreatedAt: time.Now(),
	}
	editor := bridge.NewEditor(guest, bridge.EditorCallbacks{
		OnReady: func() {
			h.log.Info("editor guest ready", zap.String("session", session.ID))
		},
		OnChange: func(code string) {
			session.SetDraft(code)
		},
		OnError: func(markers []bridge.Marker) {
			session.SetMarkers(markers)
		},
	}, bridge.Options{Logger: h.log, Stats: h.stats()})
	session.ID = editor.ID()
	session.Editor = editor
	session.SetCloseGuest(guest.close)

	h.run(session, guest, editor.Receive)
}

// HandlePreview upgrades the request and runs a preview guest session for
// the lifetime of the connection.
func (h *Handler) HandlePreview(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	guest := &guestConn{conn: conn, log: h.log}

	session := &registry.Session{
		Surface:   registry.SurfacePreview,
		CreatedAt: time.Now(),
	}
	preview := bridge.NewPreview(guest, bridge.PreviewCallbacks{
		OnReady: func() {
			h.log.Info("preview guest ready", zap.String("session", session.ID))
		},
		OnFrameUpdate: func(frame int) {
			session.SetFrame(frame)
		},
		OnError: func(message, stack string) {
			session.SetLastError(message)
			h.log.Warn("preview guest error",
				zap.String("session", session.ID),
				zap.String("message", message),
				zap.String("stack", stack),
			)
		},
		OnPlaybackStateChange: func(isPlaying bool) {
			session.SetPlaying(isPlaying)
		},
	}, bridge.Options{Logger: h.log, Stats: h.stats()})
	session.ID = preview.ID()
	session.Preview = preview
	session.SetCloseGuest(guest.close)

	h.run(session, guest, preview.Receive)
}

// run registers the session, pumps inbound frames into the bridge until
// the connection drops, then removes the session. Removal disposes the
// bridge, which cancels every pending debounce timer.
func (h *Handler) run(session *registry.Session, guest *guestConn, receive func(raw []byte)) {
	if err := h.sessions.Add(session); err != nil {
		h.log.Error("failed to register session", zap.Error(err))
		guest.close()
		return
	}
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	defer func() {
		h.sessions.Remove(session.ID)
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}()

	limiter := h.limiter()
	for {
		_, data, err := guest.conn.ReadMessage()
		if err != nil {
			h.log.Debug("guest connection closed",
				zap.String("session", session.ID),
				zap.Error(err),
			)
			return
		}
		if limiter != nil && !limiter.Allow() {
			if h.metrics != nil {
				h.metrics.MessageDropped(string(session.Surface))
			}
			continue
		}
		receive(data)
	}
}

func (h *Handler) stats() bridge.Stats {
	if h.metrics == nil {
		return nil
	}
	return h.metrics
}

func (h *Handler) limiter() *rate.Limiter {
	if !h.limits.Enabled {
		return nil
	}
	return rate.NewLimiter(rate.Limit(h.limits.MessagesPerSecond), h.limits.Burst)
}
