package bridge

import (
	"encoding/json"
)

// Editor inbound event types (guest → host).
const (
	evEditorReady      = "ready"
	evEditorCodeChange = "code-change"
	evEditorError      = "error"
	evEditorCursor     = "cursor" // reserved, currently inert
)

// Editor outbound command types (host → guest).
const (
	cmdGetCode        = "get-code"
	cmdSetCode        = "set-code"
	cmdFormat         = "format"
	cmdUndo           = "undo"
	cmdRedo           = "redo"
	cmdSetFontSize    = "set-font-size"
	cmdSetWordWrap    = "set-word-wrap"
	cmdSetLineNumbers = "set-line-numbers"
	cmdRevealLine     = "reveal-line"
	cmdSetTheme       = "set-theme"
	cmdSetReadOnly    = "set-readonly"
)

// Font size bounds for SetFontSize; out-of-range values are clamped.
const (
	MinFontSize = 10
	MaxFontSize = 24
)

// DefaultTheme is pushed to the guest on readiness unless SetTheme was
// called first.
const DefaultTheme = "dark"

// Marker is one diagnostic produced by the guest's syntax analysis,
// forwarded verbatim to OnError.
type Marker struct {
	Message     string `json:"message"`
	Severity    string `json:"severity"` // "error" or "warning"
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
}

// EditorCallbacks are the host-consumed notifications. Any field may be
// nil. OnChange is debounced: rapid guest edits within 500ms coalesce into
// one call carrying the most recent code.
type EditorCallbacks struct {
	OnReady  func()
	OnChange func(code string)
	OnError  func(markers []Marker)
}

// Editor is the bridge session for the code-editing surface.
type Editor struct {
	s  *session
	cb EditorCallbacks

	// Guarded by s.mu.
	theme      string
	readOnly   bool
	content    string // latest declarative content, post-ready
	lastChange string // latest inbound code-change awaiting the 500ms fire
}

type codePayload struct {
	Code string `json:"code"`
}

type markersPayload struct {
	Markers []Marker `json:"markers"`
}

type fontSizePayload struct {
	Size int `json:"size"`
}

type enabledPayload struct {
	Enabled bool `json:"enabled"`
}

type linePayload struct {
	Line int `json:"line"`
}

type themePayload struct {
	Theme string `json:"theme"`
}

type readOnlyPayload struct {
	ReadOnly bool `json:"readOnly"`
}

func checkCodeChange(payload json.RawMessage) bool {
	var body struct {
		Code *string `json:"code"`
	}
	return decodePayload(payload, &body) && body.Code != nil
}

func checkMarkers(payload json.RawMessage) bool {
	var body struct {
		Markers *[]Marker `json:"markers"`
	}
	if !decodePayload(payload, &body) || body.Markers == nil {
		return false
	}
	for _, m := range *body.Markers {
		if m.Severity != "error" && m.Severity != "warning" {
			return false
		}
	}
	return true
}

func editorVocabulary() Vocabulary {
	return Vocabulary{
		evEditorReady:      emptyPayload,
		evEditorCodeChange: checkCodeChange,
		evEditorError:      checkMarkers,
		evEditorCursor:     anyObject,
	}
}

// NewEditor creates an editor bridge session bound to one guest. The
// session starts Uninitialized; content set before the guest's ready event
// is buffered (latest intent only) and flushed on readiness.
func NewEditor(guest Guest, cb EditorCallbacks, opts Options) *Editor {
	e := &Editor{
		s:     newSession("editor", guest, editorVocabulary(), opts),
		cb:    cb,
		theme: DefaultTheme,
	}
	e.s.handlers[evEditorReady] = e.handleReady
	e.s.handlers[evEditorCodeChange] = e.handleCodeChange
	e.s.handlers[evEditorError] = e.handleError
	e.s.handlers[evEditorCursor] = func(json.RawMessage) {}
	return e
}

// ID returns the session identifier.
func (e *Editor) ID() string { return e.s.id }

// IsReady reports whether the guest has completed its readiness handshake.
func (e *Editor) IsReady() bool { return e.s.isReady() }

// Receive is invoked by the guest runtime for every message it emits.
// Arrival order is the only ordering guarantee. Safe for use from any
// goroutine.
func (e *Editor) Receive(raw []byte) { e.s.receive(raw) }

// Dispose tears the session down, cancelling all pending debounce timers.
// A disposed session is never reused; mount a new one instead.
func (e *Editor) Dispose() { e.s.dispose() }

// SetContent is the declarative content path. Before readiness the value
// is buffered, overwriting any earlier buffered value: only the latest
// intent survives. After readiness it is debounced on the 1s reload policy
// before a set-code command goes out.
func (e *Editor) SetContent(code string) {
	s := e.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if !s.ready {
		s.pendingContent = &code
		s.mu.Unlock()
		return
	}
	e.content = code
	s.mu.Unlock()
	s.debounce(subjectReload, reloadDelay, e.fireReload)
}

func (e *Editor) fireReload() {
	s := e.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	code := e.content
	if !s.ready {
		// Fired before readiness: redirect into the pending buffer.
		s.pendingContent = &code
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.send(cmdSetCode, codePayload{Code: code})
}

func (e *Editor) handleReady(json.RawMessage) {
	pending, first := e.s.markReady()
	if !first {
		return
	}
	if pending != nil {
		e.s.send(cmdSetCode, codePayload{Code: *pending})
	}
	e.s.mu.Lock()
	theme, readOnly := e.theme, e.readOnly
	e.s.mu.Unlock()
	e.s.send(cmdSetTheme, themePayload{Theme: theme})
	e.s.send(cmdSetReadOnly, readOnlyPayload{ReadOnly: readOnly})
	if e.cb.OnReady != nil {
		e.cb.OnReady()
	}
}

func (e *Editor) handleCodeChange(payload json.RawMessage) {
	var body codePayload
	if !decodePayload(payload, &body) {
		return
	}
	e.s.mu.Lock()
	if e.s.disposed {
		e.s.mu.Unlock()
		return
	}
	e.lastChange = body.Code
	e.s.mu.Unlock()
	e.s.debounce(subjectChangeNotify, changeNotifyDelay, e.fireChange)
}

func (e *Editor) fireChange() {
	e.s.mu.Lock()
	code := e.lastChange
	disposed := e.s.disposed
	e.s.mu.Unlock()
	if disposed || e.cb.OnChange == nil {
		return
	}
	e.cb.OnChange(code)
}

func (e *Editor) handleError(payload json.RawMessage) {
	var body markersPayload
	if !decodePayload(payload, &body) {
		return
	}
	if e.cb.OnError != nil {
		e.cb.OnError(body.Markers)
	}
}

// Imperative control verbs. Each maps 1:1 to one outbound command and
// bypasses debounce: these are deliberate host actions that must execute
// immediately, not be coalesced. Calling a verb before readiness is not an
// error: the command is sent anyway and the guest is expected to treat it
// as a no-op or queue it internally.

// GetCode asks the guest to emit its current content as a future
// code-change event. There is no reply correlation; the two messages are
// linked only by caller convention.
func (e *Editor) GetCode() { e.command(cmdGetCode, nil) }

// SetCode force-loads content immediately, bypassing both the pending
// buffer and the reload debounce.
func (e *Editor) SetCode(code string) { e.command(cmdSetCode, codePayload{Code: code}) }

// FormatCode asks the guest to reformat the current document.
func (e *Editor) FormatCode() { e.command(cmdFormat, nil) }

// Undo reverts the guest's last edit.
func (e *Editor) Undo() { e.command(cmdUndo, nil) }

// Redo reapplies the guest's last undone edit.
func (e *Editor) Redo() { e.command(cmdRedo, nil) }

// SetFontSize adjusts the display font size, clamped to [10, 24].
func (e *Editor) SetFontSize(size int) {
	if size < MinFontSize {
		size = MinFontSize
	}
	if size > MaxFontSize {
		size = MaxFontSize
	}
	e.command(cmdSetFontSize, fontSizePayload{Size: size})
}

// SetWordWrap toggles soft wrapping.
func (e *Editor) SetWordWrap(enabled bool) {
	e.command(cmdSetWordWrap, enabledPayload{Enabled: enabled})
}

// SetLineNumbers toggles the line-number gutter.
func (e *Editor) SetLineNumbers(enabled bool) {
	e.command(cmdSetLineNumbers, enabledPayload{Enabled: enabled})
}

// RevealLine scrolls the given line into view.
func (e *Editor) RevealLine(line int) { e.command(cmdRevealLine, linePayload{Line: line}) }

// SetTheme switches the editor theme. The value is remembered and replayed
// in the initial-state batch if readiness arrives later.
func (e *Editor) SetTheme(theme string) {
	e.s.mu.Lock()
	if e.s.disposed {
		e.s.mu.Unlock()
		return
	}
	e.theme = theme
	e.s.mu.Unlock()
	e.s.send(cmdSetTheme, themePayload{Theme: theme})
}

// SetReadOnly toggles edit protection. Remembered and replayed like theme.
func (e *Editor) SetReadOnly(readOnly bool) {
	e.s.mu.Lock()
	if e.s.disposed {
		e.s.mu.Unlock()
		return
	}
	e.readOnly = readOnly
	e.s.mu.Unlock()
	e.s.send(cmdSetReadOnly, readOnlyPayload{ReadOnly: readOnly})
}

func (e *Editor) command(msgType string, payload any) {
	s := e.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.send(msgType, payload)
}
