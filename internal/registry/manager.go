package registry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/framewright/backend/internal/bridge"
	"github.com/framewright/backend/internal/logging"
	"github.com/framewright/backend/internal/monitoring"
)

// Surface identifies which embedding surface a session serves.
type Surface string

const (
	SurfaceEditor  Surface = "editor"
	SurfacePreview Surface = "preview"
)

// Session is one live bridge session plus the latest guest state observed
// through its callbacks. Exactly one of Editor and Preview is non-nil.
type Session struct {
	ID        string
	Surface   Surface
	Headless  bool
	CreatedAt time.Time

	Editor  *bridge.Editor
	Preview *bridge.Preview

	// closeGuest releases the guest transport (in-process engine or
	// WebSocket connection). May be nil.
	closeGuest func()

	mu        sync.RWMutex
	draft     string
	markers   []bridge.Marker
	frame     int
	isPlaying bool
	lastError string
}

// Snapshot is the JSON-facing view of a session.
type Snapshot struct {
	ID        string          `json:"id"`
	Surface   Surface         `json:"surface"`
	Headless  bool            `json:"headless"`
	Ready     bool            `json:"ready"`
	CreatedAt time.Time       `json:"created_at"`
	Frame     int             `json:"frame"`
	IsPlaying bool            `json:"is_playing"`
	Markers   []bridge.Marker `json:"markers,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

// SetCloseGuest registers the guest release hook.
func (s *Session) SetCloseGuest(fn func()) { s.closeGuest = fn }

// SetDraft records the latest debounced content-change notification.
func (s *Session) SetDraft(code string) {
	s.mu.Lock()
	s.draft = code
	s.mu.Unlock()
}

// Draft returns the latest content the guest reported.
func (s *Session) Draft() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// SetMarkers records the latest diagnostics batch, verbatim.
func (s *Session) SetMarkers(markers []bridge.Marker) {
	s.mu.Lock()
	s.markers = markers
	s.mu.Unlock()
}

// SetFrame records the latest frame position.
func (s *Session) SetFrame(frame int) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// SetPlaying records the latest playback state.
func (s *Session) SetPlaying(playing bool) {
	s.mu.Lock()
	s.isPlaying = playing
	s.mu.Unlock()
}

// SetLastError records the latest guest-reported diagnostic message.
func (s *Session) SetLastError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
}

// Snapshot captures the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.ID,
		Surface:   s.Surface,
		Headless:  s.Headless,
		CreatedAt: s.CreatedAt,
		Frame:     s.frame,
		IsPlaying: s.isPlaying,
		Markers:   s.markers,
		LastError: s.lastError,
	}
	switch {
	case s.Editor != nil:
		snap.Ready = s.Editor.IsReady()
	case s.Preview != nil:
		snap.Ready = s.Preview.IsReady()
	}
	return snap
}

// dispose tears down the bridge and the guest transport.
func (s *Session) dispose() {
	switch {
	case s.Editor != nil:
		s.Editor.Dispose()
	case s.Preview != nil:
		s.Preview.Dispose()
	}
	if s.closeGuest != nil {
		s.closeGuest()
	}
}

// Manager is the authoritative set of live sessions.
type Manager struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session registry. metrics may be nil.
func NewManager(log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		log:      log,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Add registers a session.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	m.sessions[s.ID] = s
	if m.metrics != nil {
		m.metrics.SessionOpened(string(s.Surface))
	}
	m.log.Info("session registered",
		zap.String("session", s.ID),
		zap.String("surface", string(s.Surface)),
		zap.Bool("headless", s.Headless),
	)
	return nil
}

// Get looks a session up by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns snapshots of every live session.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Remove disposes a session and drops it from the registry. Returns false
// if the id is unknown.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.dispose()
	if m.metrics != nil {
		m.metrics.SessionClosed(string(s.Surface))
	}
	m.log.Info("session removed", zap.String("session", id))
	return true
}

// Close disposes every session. Used at server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, s := range sessions {
		s.dispose()
		if m.metrics != nil {
			m.metrics.SessionClosed(string(s.Surface))
		}
		m.log.Info("session removed", zap.String("session", id))
	}
}
