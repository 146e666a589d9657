package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/framewright/backend/internal/bridge"
	"github.com/framewright/backend/internal/config"
	"github.com/framewright/backend/internal/guest/vm"
	"github.com/framewright/backend/internal/logging"
	"github.com/framewright/backend/internal/monitoring"
	"github.com/framewright/backend/internal/registry"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	sessions *registry.Manager
	guestCfg config.GuestConfig
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(sessions *registry.Manager, guestCfg config.GuestConfig, log *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		sessions: sessions,
		guestCfg: guestCfg,
		log:      log,
		metrics:  metrics,
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Framewright Studio Backend",
	})
}

// Health handles health checks.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": len(h.sessions.List()),
	})
}

// CreateSession spawns a headless session backed by an in-process guest.
// Browser-backed sessions attach over /ws instead.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		Surface registry.Surface `json:"surface" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "surface is required"})
		return
	}

	stats := bridgeStats(h.metrics)
	opts := bridge.Options{Logger: h.log, Stats: stats}
	session := &registry.Session{
		Surface:   req.Surface,
		Headless:  true,
		CreatedAt: time.Now(),
	}

	switch req.Surface {
	case registry.SurfaceEditor:
		engine := vm.NewEditorEngine(h.log)
		editor := bridge.NewEditor(engine, bridge.EditorCallbacks{
			OnChange: session.SetDraft,
			OnError:  session.SetMarkers,
		}, opts)
		session.ID = editor.ID()
		session.Editor = editor
		session.SetCloseGuest(engine.Close)
		if err := h.sessions.Add(session); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		engine.Start(editor.Receive)
	case registry.SurfacePreview:
		engine := vm.NewPreviewEngine(vm.RuntimeConfig{
			ExecTimeout:   h.guestCfg.ExecTimeout,
			MaxStackDepth: h.guestCfg.MaxStackDepth,
		}, h.log)
		preview := bridge.NewPreview(engine, bridge.PreviewCallbacks{
			OnFrameUpdate: session.SetFrame,
			OnPlaybackStateChange: func(isPlaying bool) {
				session.SetPlaying(isPlaying)
			},
			OnError: func(message, _ string) {
				session.SetLastError(message)
			},
		}, opts)
		session.ID = preview.ID()
		session.Preview = preview
		session.SetCloseGuest(engine.Close)
		if err := h.sessions.Add(session); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		engine.Start(preview.Receive)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "surface must be editor or preview"})
		return
	}

	h.log.Info("headless session created",
		zap.String("session", session.ID),
		zap.String("surface", string(req.Surface)),
	)
	c.JSON(http.StatusCreated, session.Snapshot())
}

// ListSessions lists all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

// GetSession returns one session snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// DeleteSession disposes a session: every pending debounce timer is
// cancelled and the guest transport released.
func (h *Handlers) DeleteSession(c *gin.Context) {
	if !h.sessions.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCode returns the latest content the guest has reported. Reading is
// side-effect free: it never pings the guest, so callers may poll at any
// rate. A stale draft is refreshed via EditorRefresh: a code-change event
// re-arms the 500ms notify debounce, so a read that also sent get-code
// would starve the draft under fast polling.
func (h *Handlers) GetCode(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": session.Draft()})
}

// EditorRefresh asks the guest to emit a fresh copy of its content. The
// reply is uncorrelated: it lands in a future code-change event, visible
// through GetCode once the notify debounce fires.
func (h *Handlers) EditorRefresh(c *gin.Context) {
	if editor, ok := h.editorFor(c); ok {
		editor.GetCode()
		c.Status(http.StatusAccepted)
	}
}

// SetCode is the declarative content path: buffered before guest
// readiness, reload-debounced (1s) after.
func (h *Handlers) SetCode(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	switch {
	case session.Editor != nil:
		session.Editor.SetContent(req.Code)
	case session.Preview != nil:
		session.Preview.SetContent(req.Code)
	}
	c.Status(http.StatusAccepted)
}

// SetVariables is the declarative live-parameter path (200ms debounce).
func (h *Handlers) SetVariables(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Variables map[string]any `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.SetVariables(req.Variables)
	c.Status(http.StatusAccepted)
}

// SetComposition stages render-target dimensions for the next reload.
func (h *Handlers) SetComposition(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req bridge.Composition
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.SetComposition(req)
	c.Status(http.StatusAccepted)
}

// Editor verbs. Fire-and-forget: 202 means the command went onto the
// channel, not that the guest acted on it.

// EditorLoad force-loads content immediately, bypassing the debounce.
func (h *Handlers) EditorLoad(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.SetCode(req.Code)
	c.Status(http.StatusAccepted)
}

// EditorFormat asks the guest to reformat the document.
func (h *Handlers) EditorFormat(c *gin.Context) {
	if editor, ok := h.editorFor(c); ok {
		editor.FormatCode()
		c.Status(http.StatusAccepted)
	}
}

// EditorUndo reverts the last edit.
func (h *Handlers) EditorUndo(c *gin.Context) {
	if editor, ok := h.editorFor(c); ok {
		editor.Undo()
		c.Status(http.StatusAccepted)
	}
}

// EditorRedo reapplies the last undone edit.
func (h *Handlers) EditorRedo(c *gin.Context) {
	if editor, ok := h.editorFor(c); ok {
		editor.Redo()
		c.Status(http.StatusAccepted)
	}
}

// EditorFontSize adjusts the display font size (clamped to 10-24).
func (h *Handlers) EditorFontSize(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Size int `json:"size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.SetFontSize(req.Size)
	c.Status(http.StatusAccepted)
}

// EditorWordWrap toggles soft wrapping.
func (h *Handlers) EditorWordWrap(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.SetWordWrap(req.Enabled)
	c.Status(http.StatusAccepted)
}

// EditorLineNumbers toggles the line-number gutter.
func (h *Handlers) EditorLineNumbers(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.SetLineNumbers(req.Enabled)
	c.Status(http.StatusAccepted)
}

// EditorRevealLine scrolls a line into view.
func (h *Handlers) EditorRevealLine(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Line int `json:"line"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.RevealLine(req.Line)
	c.Status(http.StatusAccepted)
}

// EditorTheme switches the editor theme.
func (h *Handlers) EditorTheme(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		Theme string `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme is required"})
		return
	}
	editor.SetTheme(req.Theme)
	c.Status(http.StatusAccepted)
}

// EditorReadOnly toggles edit protection.
func (h *Handlers) EditorReadOnly(c *gin.Context) {
	editor, ok := h.editorFor(c)
	if !ok {
		return
	}
	var req struct {
		ReadOnly bool `json:"readOnly"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	editor.SetReadOnly(req.ReadOnly)
	c.Status(http.StatusAccepted)
}

// Preview verbs.

// PreviewPlay starts playback.
func (h *Handlers) PreviewPlay(c *gin.Context) {
	if preview, ok := h.previewFor(c); ok {
		preview.Play()
		c.Status(http.StatusAccepted)
	}
}

// PreviewPause halts playback.
func (h *Handlers) PreviewPause(c *gin.Context) {
	if preview, ok := h.previewFor(c); ok {
		preview.Pause()
		c.Status(http.StatusAccepted)
	}
}

// PreviewSeek jumps to a frame.
func (h *Handlers) PreviewSeek(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Frame int `json:"frame"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.Seek(req.Frame)
	c.Status(http.StatusAccepted)
}

// PreviewResolution picks a render scale from the fixed table.
func (h *Handlers) PreviewResolution(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	preview.SetResolution(req.Key)
	c.Status(http.StatusAccepted)
}

// PreviewSpeed adjusts the playback rate.
func (h *Handlers) PreviewSpeed(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Rate float64 `json:"rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.SetSpeed(req.Rate)
	c.Status(http.StatusAccepted)
}

// PreviewLoop toggles looping.
func (h *Handlers) PreviewLoop(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Loop bool `json:"loop"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.ToggleLoop(req.Loop)
	c.Status(http.StatusAccepted)
}

// PreviewLoad force-reloads the composition immediately, bypassing the 1s
// reload debounce.
func (h *Handlers) PreviewLoad(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.LoadCode(req.Code)
	c.Status(http.StatusAccepted)
}

// PreviewVariables pushes live parameters immediately, bypassing the
// 200ms debounce.
func (h *Handlers) PreviewVariables(c *gin.Context) {
	preview, ok := h.previewFor(c)
	if !ok {
		return
	}
	var req struct {
		Variables map[string]any `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	preview.UpdateVariables(req.Variables)
	c.Status(http.StatusAccepted)
}

func (h *Handlers) editorFor(c *gin.Context) (*bridge.Editor, bool) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	if session.Editor == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not an editor session"})
		return nil, false
	}
	return session.Editor, true
}

func (h *Handlers) previewFor(c *gin.Context) (*bridge.Preview, bool) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	if session.Preview == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a preview session"})
		return nil, false
	}
	return session.Preview, true
}

func bridgeStats(m *monitoring.Metrics) bridge.Stats {
	if m == nil {
		return nil
	}
	return m
}
