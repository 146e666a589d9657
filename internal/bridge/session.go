package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/framewright/backend/internal/logging"
)

// Stats receives bridge accounting events. Implementations must be safe
// for concurrent use. All methods are called on hot paths; keep them cheap.
type Stats interface {
	MessageSent(bridge, msgType string)
	MessageReceived(bridge, msgType string)
	MessageDropped(bridge string)
}

// Options configures a bridge session. The zero value is usable: logging
// falls back to a no-op logger and accounting is skipped.
type Options struct {
	Logger *logging.Logger
	Stats  Stats
}

// session is the state shared by both bridge instantiations: one guest,
// the readiness handshake, the pending-content buffer, and the debounce
// timers. A session is never reused after dispose.
type session struct {
	id    string
	name  string // "editor" or "preview", for logs and metrics
	guest Guest
	vocab Vocabulary
	log   *logging.Logger
	stats Stats

	mu             sync.Mutex
	ready          bool
	disposed       bool
	pendingContent *string
	timers         map[subject]*time.Timer
	handlers       map[string]func(payload json.RawMessage)
}

func newSession(name string, guest Guest, vocab Vocabulary, opts Options) *session {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &session{
		id:       uuid.NewString(),
		name:     name,
		guest:    guest,
		vocab:    vocab,
		log:      log,
		stats:    opts.Stats,
		timers:   make(map[subject]*time.Timer),
		handlers: make(map[string]func(json.RawMessage)),
	}
}

// receive validates and dispatches one inbound message. Malformed text,
// unknown types, and invalid payloads are dropped without touching any
// session state: no callback fires, no timer moves, readiness is
// unchanged. The drop is counted and logged at debug level only.
func (s *session) receive(raw []byte) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	msg, ok := decode(raw, s.vocab)
	if !ok {
		if s.stats != nil {
			s.stats.MessageDropped(s.name)
		}
		s.log.Debug("dropped invalid guest message",
			zap.String("bridge", s.name),
			zap.String("session", s.id),
			zap.Int("bytes", len(raw)),
		)
		return
	}

	if s.stats != nil {
		s.stats.MessageReceived(s.name, msg.Type)
	}
	// Handlers exist for every vocabulary entry; reserved types map to a
	// no-op handler rather than a missing one.
	if handle, ok := s.handlers[msg.Type]; ok {
		handle(msg.Payload)
	}
}

// send serializes one command and pushes it into the guest. Fire and
// forget: there is no acknowledgement and no observable delivery failure.
// Must not be called with s.mu held: an in-process guest may emit events
// synchronously from Send, re-entering receive.
func (s *session) send(msgType string, payload any) {
	raw, err := encode(msgType, payload)
	if err != nil {
		// Command payloads are built from our own types; this indicates a
		// bug, not guest input.
		s.log.Error("failed to encode command",
			zap.String("bridge", s.name),
			zap.String("type", msgType),
			zap.Error(err),
		)
		return
	}
	s.guest.Send(raw)
	if s.stats != nil {
		s.stats.MessageSent(s.name, msgType)
	}
	s.log.Debug("command sent",
		zap.String("bridge", s.name),
		zap.String("session", s.id),
		zap.String("type", msgType),
	)
}

// markReady transitions the session to Ready. Returns the buffered content
// to flush (nil if none) and whether this call performed the transition;
// readiness never regresses, so repeat ready events are no-ops.
func (s *session) markReady() (pending *string, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.ready {
		return nil, false
	}
	s.ready = true
	pending = s.pendingContent
	s.pendingContent = nil
	return pending, true
}

// dispose tears the session down: every outstanding debounce timer is
// cancelled and the pending buffer discarded. Work already delegated to
// the guest cannot be cancelled; no such message exists in the outbound
// vocabulary. Idempotent.
func (s *session) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.cancelTimers()
	s.pendingContent = nil
	s.mu.Unlock()

	s.log.Info("bridge session disposed",
		zap.String("bridge", s.name),
		zap.String("session", s.id),
	)
}

// isReady reports the readiness state. Exposed for the host's own
// bookkeeping; the bridge never blocks on it.
func (s *session) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}
