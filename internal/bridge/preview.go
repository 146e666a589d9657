package bridge

import (
	"encoding/json"
)

// Preview inbound event types (guest → host).
const (
	evPreviewReady         = "ready"
	evPreviewFrameUpdate   = "frame-update"
	evPreviewError         = "error"
	evPreviewPlaybackState = "playback-state"
)

// Preview outbound command types (host → guest).
const (
	cmdLoadCode        = "load-code"
	cmdUpdateVariables = "update-variables"
	cmdPlay            = "play"
	cmdPause           = "pause"
	cmdSeek            = "seek"
	cmdSetResolution   = "set-resolution"
	cmdSetSpeed        = "set-speed"
	cmdToggleLoop      = "toggle-loop"
)

// Resolution keys accepted by SetResolution. Unknown keys fall back to
// ResolutionFull so every verb call still produces exactly one command.
const (
	ResolutionFull    = "full"
	ResolutionHalf    = "half"
	ResolutionQuarter = "quarter"
)

// resolutionScales is the fixed key → render-scale table.
var resolutionScales = map[string]float64{
	ResolutionFull:    1.0,
	ResolutionHalf:    0.5,
	ResolutionQuarter: 0.25,
}

// Composition describes the render target bundled into every load-code
// command. These values are not independently debounced: changing them
// takes effect on the next reload.
type Composition struct {
	Width            int `json:"compositionWidth"`
	Height           int `json:"compositionHeight"`
	FPS              int `json:"fps"`
	DurationInFrames int `json:"durationInFrames"`
}

// DefaultComposition matches the studio's new-project template.
func DefaultComposition() Composition {
	return Composition{
		Width:            1920,
		Height:           1080,
		FPS:              30,
		DurationInFrames: 150,
	}
}

// PreviewCallbacks are the host-consumed notifications. Any field may be
// nil. None of these are debounced; frame updates arrive at whatever rate
// the guest emits them.
type PreviewCallbacks struct {
	OnReady               func()
	OnFrameUpdate         func(frame int)
	OnError               func(message, stack string)
	OnPlaybackStateChange func(isPlaying bool)
}

// Preview is the bridge session for the live-rendering surface.
type Preview struct {
	s  *session
	cb PreviewCallbacks

	// Guarded by s.mu.
	composition Composition
	content     string         // latest declarative code, post-ready
	variables   map[string]any // latest declarative variables
}

type loadCodePayload struct {
	Code string `json:"code"`
	Composition
}

type variablesPayload struct {
	Variables map[string]any `json:"variables"`
}

type framePayload struct {
	Frame int `json:"frame"`
}

type resolutionPayload struct {
	Scale float64 `json:"scale"`
}

type speedPayload struct {
	Rate float64 `json:"rate"`
}

type loopPayload struct {
	Loop bool `json:"loop"`
}

type playbackStatePayload struct {
	IsPlaying bool `json:"isPlaying"`
}

type previewErrorPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func checkFrameUpdate(payload json.RawMessage) bool {
	var body struct {
		Frame *int `json:"frame"`
	}
	return decodePayload(payload, &body) && body.Frame != nil
}

func checkPreviewError(payload json.RawMessage) bool {
	var body struct {
		Message *string `json:"message"`
	}
	return decodePayload(payload, &body) && body.Message != nil
}

func checkPlaybackState(payload json.RawMessage) bool {
	var body struct {
		IsPlaying *bool `json:"isPlaying"`
	}
	return decodePayload(payload, &body) && body.IsPlaying != nil
}

func previewVocabulary() Vocabulary {
	return Vocabulary{
		evPreviewReady:         emptyPayload,
		evPreviewFrameUpdate:   checkFrameUpdate,
		evPreviewError:         checkPreviewError,
		evPreviewPlaybackState: checkPlaybackState,
	}
}

// NewPreview creates a preview bridge session bound to one guest. Same
// design as the editor bridge with a different vocabulary and debounce
// constants; the two never share state even when mounted together.
func NewPreview(guest Guest, cb PreviewCallbacks, opts Options) *Preview {
	p := &Preview{
		s:           newSession("preview", guest, previewVocabulary(), opts),
		cb:          cb,
		composition: DefaultComposition(),
	}
	p.s.handlers[evPreviewReady] = p.handleReady
	p.s.handlers[evPreviewFrameUpdate] = p.handleFrameUpdate
	p.s.handlers[evPreviewError] = p.handleError
	p.s.handlers[evPreviewPlaybackState] = p.handlePlaybackState
	return p
}

// ID returns the session identifier.
func (p *Preview) ID() string { return p.s.id }

// IsReady reports whether the guest has completed its readiness handshake.
func (p *Preview) IsReady() bool { return p.s.isReady() }

// Receive is invoked by the guest runtime for every message it emits.
func (p *Preview) Receive(raw []byte) { p.s.receive(raw) }

// Dispose tears the session down, cancelling all pending debounce timers.
func (p *Preview) Dispose() { p.s.dispose() }

// SetComposition stages new render-target dimensions. Bundled into the
// next load-code command; does not itself trigger a reload.
func (p *Preview) SetComposition(c Composition) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.disposed {
		return
	}
	p.composition = c
}

// SetContent is the declarative code path: buffered before readiness
// (latest intent only), debounced on the 1s reload policy after. The
// eventual load-code command bundles the current composition settings.
func (p *Preview) SetContent(code string) {
	s := p.s
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
	p.content = code
	s.mu.Unlock()
	s.debounce(subjectReload, reloadDelay, p.fireReload)
}

func (p *Preview) fireReload() {
	s := p.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	code := p.content
	if !s.ready {
		s.pendingContent = &code
		s.mu.Unlock()
		return
	}
	comp := p.composition
	s.mu.Unlock()
	s.send(cmdLoadCode, loadCodePayload{Code: code, Composition: comp})
}

// SetVariables is the declarative live-parameter path: a faster 200ms
// debounce where latency matters more than batching. Before readiness the
// variables are folded into the initial-state batch instead.
func (p *Preview) SetVariables(vars map[string]any) {
	s := p.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	p.variables = vars
	if !s.ready {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.debounce(subjectVariableUpdate, variableUpdateDelay, p.fireVariables)
}

func (p *Preview) fireVariables() {
	s := p.s
	s.mu.Lock()
	if s.disposed || !s.ready {
		s.mu.Unlock()
		return
	}
	vars := p.variables
	s.mu.Unlock()
	s.send(cmdUpdateVariables, variablesPayload{Variables: vars})
}

func (p *Preview) handleReady(json.RawMessage) {
	pending, first := p.s.markReady()
	if !first {
		return
	}
	p.s.mu.Lock()
	comp := p.composition
	vars := p.variables
	p.s.mu.Unlock()
	if pending != nil {
		p.s.send(cmdLoadCode, loadCodePayload{Code: *pending, Composition: comp})
	}
	if len(vars) > 0 {
		p.s.send(cmdUpdateVariables, variablesPayload{Variables: vars})
	}
	if p.cb.OnReady != nil {
		p.cb.OnReady()
	}
}

func (p *Preview) handleFrameUpdate(payload json.RawMessage) {
	var body framePayload
	if !decodePayload(payload, &body) {
		return
	}
	if p.cb.OnFrameUpdate != nil {
		p.cb.OnFrameUpdate(body.Frame)
	}
}

func (p *Preview) handleError(payload json.RawMessage) {
	var body previewErrorPayload
	if !decodePayload(payload, &body) {
		return
	}
	if p.cb.OnError != nil {
		p.cb.OnError(body.Message, body.Stack)
	}
}

func (p *Preview) handlePlaybackState(payload json.RawMessage) {
	var body playbackStatePayload
	if !decodePayload(payload, &body) {
		return
	}
	if p.cb.OnPlaybackStateChange != nil {
		p.cb.OnPlaybackStateChange(body.IsPlaying)
	}
}

// Imperative control verbs, 1:1 with outbound commands, no debounce.

// Play starts playback.
func (p *Preview) Play() { p.command(cmdPlay, nil) }

// Pause halts playback at the current frame.
func (p *Preview) Pause() { p.command(cmdPause, nil) }

// Seek jumps to a frame.
func (p *Preview) Seek(frame int) { p.command(cmdSeek, framePayload{Frame: frame}) }

// SetResolution picks a render scale from the fixed table. Unknown keys
// render at full scale.
func (p *Preview) SetResolution(key string) {
	scale, ok := resolutionScales[key]
	if !ok {
		scale = resolutionScales[ResolutionFull]
	}
	p.command(cmdSetResolution, resolutionPayload{Scale: scale})
}

// SetSpeed adjusts the playback rate (1.0 is realtime).
func (p *Preview) SetSpeed(rate float64) { p.command(cmdSetSpeed, speedPayload{Rate: rate}) }

// ToggleLoop enables or disables looping at the composition end.
func (p *Preview) ToggleLoop(loop bool) { p.command(cmdToggleLoop, loopPayload{Loop: loop}) }

// LoadCode force-reloads the composition immediately, bypassing the 1s
// reload debounce and the pending buffer. Current composition settings are
// bundled in.
func (p *Preview) LoadCode(code string) {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return
	}
	comp := p.composition
	p.s.mu.Unlock()
	p.s.send(cmdLoadCode, loadCodePayload{Code: code, Composition: comp})
}

// UpdateVariables pushes live parameters immediately, bypassing the 200ms
// debounce on the declarative path.
func (p *Preview) UpdateVariables(vars map[string]any) {
	p.command(cmdUpdateVariables, variablesPayload{Variables: vars})
}

func (p *Preview) command(msgType string, payload any) {
	s := p.s
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.send(msgType, payload)
}
