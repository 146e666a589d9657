package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

// recordingGuest captures every command the host sends, decoded back
// into Messages so tests can assert on type and payload.
type recordingGuest struct {
	mu   sync.Mutex
	sent []Message
}

func (g *recordingGuest) Send(raw []byte) {
	var msg Message
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		panic("guest received invalid JSON: " + err.Error())
	}
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()
}

func (g *recordingGuest) messages() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Message, len(g.sent))
	copy(out, g.sent)
	return out
}

func (g *recordingGuest) ofType(msgType string) []Message {
	var out []Message
	for _, m := range g.messages() {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// countingStats records drop counts for the silent-drop tests.
type countingStats struct {
	mu       sync.Mutex
	sent     int
	received int
	dropped  int
}

func (s *countingStats) MessageSent(string, string) {
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
}

func (s *countingStats) MessageReceived(string, string) {
	s.mu.Lock()
	s.received++
	s.mu.Unlock()
}

func (s *countingStats) MessageDropped(string) {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *countingStats) counts() (sent, received, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.received, s.dropped
}

func codeOf(t *testing.T, msg Message) string {
	t.Helper()
	var p codePayload
	if !decodePayload(msg.Payload, &p) {
		t.Fatalf("message %q has no code payload: %s", msg.Type, msg.Payload)
	}
	return p.Code
}

func readyRaw() []byte {
	return []byte(`{"type":"ready","payload":{}}`)
}

func TestEditorBuffersContentUntilReady(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	// Rapid declarative updates before the guest announces readiness:
	// nothing goes over the wire, and only the last value survives.
	editor.SetContent("draft one")
	editor.SetContent("draft two")
	editor.SetContent("draft three")

	if got := len(guest.messages()); got != 0 {
		t.Fatalf("sent %d messages before ready, want 0", got)
	}

	editor.Receive(readyRaw())

	sets := guest.ofType(cmdSetCode)
	if len(sets) != 1 {
		t.Fatalf("got %d set-code commands after ready, want exactly 1", len(sets))
	}
	if code := codeOf(t, sets[0]); code != "draft three" {
		t.Errorf("flushed code = %q, want last value %q", code, "draft three")
	}
}

func TestEditorReadyFlushOrder(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	editor.SetContent("hello")
	editor.Receive(readyRaw())

	msgs := guest.messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages after ready, want 3 (set-code, set-theme, set-readonly)", len(msgs))
	}
	want := []string{cmdSetCode, cmdSetTheme, cmdSetReadOnly}
	for i, w := range want {
		if msgs[i].Type != w {
			t.Errorf("message[%d] = %q, want %q", i, msgs[i].Type, w)
		}
	}

	var theme themePayload
	if !decodePayload(msgs[1].Payload, &theme) || theme.Theme != DefaultTheme {
		t.Errorf("initial theme payload = %s, want %q", msgs[1].Payload, DefaultTheme)
	}
}

func TestEditorReadyWithoutContentSendsNoSetCode(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())

	if sets := guest.ofType(cmdSetCode); len(sets) != 0 {
		t.Errorf("got %d set-code commands, want 0 when no content was staged", len(sets))
	}
	if themes := guest.ofType(cmdSetTheme); len(themes) != 1 {
		t.Errorf("got %d set-theme commands, want 1", len(themes))
	}
}

func TestEditorRepeatReadyIsNoOp(t *testing.T) {
	readies := 0
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{
		OnReady: func() { readies++ },
	}, Options{})
	defer editor.Dispose()

	editor.SetContent("once")
	editor.Receive(readyRaw())
	editor.Receive(readyRaw())
	editor.Receive(readyRaw())

	if readies != 1 {
		t.Errorf("OnReady fired %d times, want 1", readies)
	}
	if sets := guest.ofType(cmdSetCode); len(sets) != 1 {
		t.Errorf("got %d set-code flushes, want 1", len(sets))
	}
}

func TestEditorCoalescesCodeChanges(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []string
	)
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{
		OnChange: func(code string) {
			mu.Lock()
			changes = append(changes, code)
			mu.Unlock()
		},
	}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())
	editor.Receive([]byte(`{"type":"code-change","payload":{"code":"a"}}`))
	editor.Receive([]byte(`{"type":"code-change","payload":{"code":"ab"}}`))
	editor.Receive([]byte(`{"type":"code-change","payload":{"code":"abc"}}`))

	// The notify window is 500ms; nothing should surface early.
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	early := len(changes)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("OnChange fired %d times before the debounce window elapsed", early)
	}

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 {
		t.Fatalf("OnChange fired %d times, want 1", len(changes))
	}
	if changes[0] != "abc" {
		t.Errorf("OnChange value = %q, want latest %q", changes[0], "abc")
	}
}

func TestEditorDebounceWindowRestartsPerEvent(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []string
	)
	editor := NewEditor(&recordingGuest{}, EditorCallbacks{
		OnChange: func(code string) {
			mu.Lock()
			changes = append(changes, code)
			mu.Unlock()
		},
	}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())

	// Keep typing every 300ms; each event restarts the 500ms window,
	// so no notification fires until the typing stops.
	for _, code := range []string{"x", "xy", "xyz"} {
		editor.Receive([]byte(`{"type":"code-change","payload":{"code":"` + code + `"}}`))
		time.Sleep(300 * time.Millisecond)
	}

	mu.Lock()
	during := len(changes)
	mu.Unlock()
	if during != 0 {
		t.Fatalf("OnChange fired %d times while events kept arriving", during)
	}

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0] != "xyz" {
		t.Fatalf("changes = %v, want single %q", changes, "xyz")
	}
}

func TestEditorSetContentDebouncedAfterReady(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())
	base := len(guest.messages())

	editor.SetContent("v1")
	editor.SetContent("v2")

	if got := len(guest.messages()); got != base {
		t.Fatalf("set-code sent before the reload window elapsed")
	}

	time.Sleep(1200 * time.Millisecond)
	sets := guest.ofType(cmdSetCode)
	if len(sets) != 1 {
		t.Fatalf("got %d set-code commands, want 1", len(sets))
	}
	if code := codeOf(t, sets[0]); code != "v2" {
		t.Errorf("reloaded code = %q, want %q", code, "v2")
	}
}

func TestEditorSetCodeBypassesDebounce(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())
	editor.SetCode("immediate")

	sets := guest.ofType(cmdSetCode)
	if len(sets) != 1 {
		t.Fatalf("got %d set-code commands, want 1 immediately", len(sets))
	}
	if code := codeOf(t, sets[0]); code != "immediate" {
		t.Errorf("code = %q", code)
	}
}

func TestEditorDisposeCancelsPendingTimers(t *testing.T) {
	guest := &recordingGuest{}
	changes := 0
	editor := NewEditor(guest, EditorCallbacks{
		OnChange: func(string) { changes++ },
	}, Options{})

	editor.Receive(readyRaw())
	base := len(guest.messages())

	editor.SetContent("never sent")
	editor.Receive([]byte(`{"type":"code-change","payload":{"code":"never notified"}}`))
	editor.Dispose()

	time.Sleep(1200 * time.Millisecond)

	if got := len(guest.messages()); got != base {
		t.Errorf("guest received %d messages after dispose, want 0", got-base)
	}
	if changes != 0 {
		t.Errorf("OnChange fired %d times after dispose, want 0", changes)
	}
}

func TestEditorDisposeIsIdempotent(t *testing.T) {
	editor := NewEditor(&recordingGuest{}, EditorCallbacks{}, Options{})
	editor.Dispose()
	editor.Dispose()

	// Messages after dispose are ignored without panicking.
	editor.Receive(readyRaw())
	if editor.IsReady() {
		t.Error("session became ready after dispose")
	}
}

func TestEditorDropsMalformedMessages(t *testing.T) {
	stats := &countingStats{}
	guest := &recordingGuest{}
	calls := 0
	editor := NewEditor(guest, EditorCallbacks{
		OnReady:  func() { calls++ },
		OnChange: func(string) { calls++ },
		OnError:  func([]Marker) { calls++ },
	}, Options{Stats: stats})
	defer editor.Dispose()

	malformed := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"launch-missiles","payload":{}}`),
		[]byte(`{"type":"code-change","payload":{}}`),
		[]byte(`{"type":"code-change","payload":{"code":7}}`),
		[]byte(`{"type":"error","payload":{"markers":[{"severity":"fatal","message":"x"}]}}`),
		[]byte(`{"payload":{"code":"missing type"}}`),
	}
	for _, raw := range malformed {
		editor.Receive(raw)
	}

	if calls != 0 {
		t.Errorf("callbacks fired %d times on malformed input, want 0", calls)
	}
	if editor.IsReady() {
		t.Error("malformed input flipped readiness")
	}
	if got := len(guest.messages()); got != 0 {
		t.Errorf("malformed input produced %d outbound messages, want 0", got)
	}
	if _, _, dropped := stats.counts(); dropped != len(malformed) {
		t.Errorf("dropped count = %d, want %d", dropped, len(malformed))
	}
}

func TestEditorForwardsMarkersVerbatim(t *testing.T) {
	var got []Marker
	editor := NewEditor(&recordingGuest{}, EditorCallbacks{
		OnError: func(markers []Marker) { got = markers },
	}, Options{})
	defer editor.Dispose()

	editor.Receive(readyRaw())
	editor.Receive([]byte(`{"type":"error","payload":{"markers":[
		{"message":"unexpected token","severity":"error","startLine":2,"startColumn":4,"endLine":2,"endColumn":9},
		{"message":"unused binding","severity":"warning","startLine":5,"startColumn":1,"endLine":5,"endColumn":3}
	]}}`))

	if len(got) != 2 {
		t.Fatalf("got %d markers, want 2", len(got))
	}
	first := Marker{
		Message: "unexpected token", Severity: "error",
		StartLine: 2, StartColumn: 4, EndLine: 2, EndColumn: 9,
	}
	if got[0] != first {
		t.Errorf("marker[0] = %+v, want %+v", got[0], first)
	}
	if got[1].Severity != "warning" {
		t.Errorf("marker[1] severity = %q, want warning", got[1].Severity)
	}
}

func TestEditorEmptyMarkerListClearsDiagnostics(t *testing.T) {
	fired := false
	var got []Marker
	editor := NewEditor(&recordingGuest{}, EditorCallbacks{
		OnError: func(markers []Marker) {
			fired = true
			got = markers
		},
	}, Options{})
	defer editor.Dispose()

	editor.Receive([]byte(`{"type":"error","payload":{"markers":[]}}`))

	if !fired {
		t.Fatal("OnError not fired for empty marker list")
	}
	if len(got) != 0 {
		t.Errorf("got %d markers, want 0", len(got))
	}
}

func TestEditorVerbs(t *testing.T) {
	tests := []struct {
		name string
		call func(*Editor)
		want string
	}{
		{"get code", func(e *Editor) { e.GetCode() }, cmdGetCode},
		{"format", func(e *Editor) { e.FormatCode() }, cmdFormat},
		{"undo", func(e *Editor) { e.Undo() }, cmdUndo},
		{"redo", func(e *Editor) { e.Redo() }, cmdRedo},
		{"word wrap", func(e *Editor) { e.SetWordWrap(true) }, cmdSetWordWrap},
		{"line numbers", func(e *Editor) { e.SetLineNumbers(false) }, cmdSetLineNumbers},
		{"reveal line", func(e *Editor) { e.RevealLine(12) }, cmdRevealLine},
		{"theme", func(e *Editor) { e.SetTheme("light") }, cmdSetTheme},
		{"readonly", func(e *Editor) { e.SetReadOnly(true) }, cmdSetReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guest := &recordingGuest{}
			editor := NewEditor(guest, EditorCallbacks{}, Options{})
			defer editor.Dispose()

			tt.call(editor)

			msgs := guest.messages()
			if len(msgs) != 1 {
				t.Fatalf("got %d messages, want 1", len(msgs))
			}
			if msgs[0].Type != tt.want {
				t.Errorf("type = %q, want %q", msgs[0].Type, tt.want)
			}
		})
	}
}

func TestEditorFontSizeClamped(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, MinFontSize},
		{10, 10},
		{16, 16},
		{24, 24},
		{99, MaxFontSize},
	}

	for _, tt := range tests {
		guest := &recordingGuest{}
		editor := NewEditor(guest, EditorCallbacks{}, Options{})

		editor.SetFontSize(tt.in)

		msgs := guest.ofType(cmdSetFontSize)
		if len(msgs) != 1 {
			t.Fatalf("SetFontSize(%d): got %d messages", tt.in, len(msgs))
		}
		var p fontSizePayload
		if !decodePayload(msgs[0].Payload, &p) {
			t.Fatalf("bad payload: %s", msgs[0].Payload)
		}
		if p.Size != tt.want {
			t.Errorf("SetFontSize(%d) sent %d, want %d", tt.in, p.Size, tt.want)
		}
		editor.Dispose()
	}
}

func TestEditorThemeSurvivesToReadyBatch(t *testing.T) {
	guest := &recordingGuest{}
	editor := NewEditor(guest, EditorCallbacks{}, Options{})
	defer editor.Dispose()

	// Theme set before ready is remembered and included in the
	// initial-state batch instead of the default.
	editor.SetTheme("solarized")
	editor.Receive(readyRaw())

	themes := guest.ofType(cmdSetTheme)
	if len(themes) == 0 {
		t.Fatal("no set-theme command after ready")
	}
	var p themePayload
	last := themes[len(themes)-1]
	if !decodePayload(last.Payload, &p) || p.Theme != "solarized" {
		t.Errorf("ready batch theme = %s, want solarized", last.Payload)
	}
}
