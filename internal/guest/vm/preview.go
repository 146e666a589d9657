package vm

import (
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/framewright/backend/internal/logging"
)

// PreviewEngine is the in-process rendering guest: it evaluates user
// composition code in a locked-down goja runtime and drives a frame clock
// honoring play/pause/seek/speed/loop. It implements bridge.Guest.
//
// The composition contract is minimal: if the evaluated code defines a
// global function `frame(n, inputs)`, the clock invokes it once per
// rendered frame; uncaught errors surface as error events.
type PreviewEngine struct {
	cfg RuntimeConfig
	log *logging.Logger
	em  *emitter

	mu       sync.Mutex
	rt       *runtime
	frame    int
	playing  bool
	loop     bool
	speed    float64
	scale    float64
	fps      int
	duration int
	vars     map[string]any

	done chan struct{}
	once sync.Once
}

// NewPreviewEngine creates a preview guest with the given runtime limits.
func NewPreviewEngine(cfg RuntimeConfig, log *logging.Logger) *PreviewEngine {
	if log == nil {
		log = logging.NewNop()
	}
	if cfg.ExecTimeout <= 0 {
		cfg = DefaultRuntimeConfig()
	}
	return &PreviewEngine{
		cfg:   cfg,
		log:   log,
		em:    newEmitter(),
		speed: 1.0,
		scale: 1.0,
		fps:   30,
		done:  make(chan struct{}),
	}
}

// Start wires the guest's event stream to the host, starts the frame
// clock, and performs the readiness handshake.
func (g *PreviewEngine) Start(recv func(raw []byte)) {
	g.em.start(recv)
	go g.clock()
	g.em.emit("ready", nil)
}

// Close stops the clock and event delivery.
func (g *PreviewEngine) Close() {
	g.once.Do(func() { close(g.done) })
	g.em.close()
}

// Send implements bridge.Guest. Unrecognized or malformed commands are
// ignored.
func (g *PreviewEngine) Send(raw []byte) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		g.log.Debug("preview guest ignored malformed command", zap.Error(err))
		return
	}

	switch env.Type {
	case "load-code":
		var body struct {
			Code             string `json:"code"`
			Width            int    `json:"compositionWidth"`
			Height           int    `json:"compositionHeight"`
			FPS              int    `json:"fps"`
			DurationInFrames int    `json:"durationInFrames"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.loadCode(body.Code, body.Width, body.Height, body.FPS, body.DurationInFrames)
	case "update-variables":
		var body struct {
			Variables map[string]any `json:"variables"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.updateVariables(body.Variables)
	case "play":
		g.setPlaying(true)
	case "pause":
		g.setPlaying(false)
	case "seek":
		var body struct {
			Frame int `json:"frame"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.seek(body.Frame)
	case "set-resolution":
		var body struct {
			Scale float64 `json:"scale"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.mu.Lock()
		if body.Scale > 0 {
			g.scale = body.Scale
		}
		g.mu.Unlock()
	case "set-speed":
		var body struct {
			Rate float64 `json:"rate"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.mu.Lock()
		if body.Rate > 0 {
			g.speed = body.Rate
		}
		g.mu.Unlock()
	case "toggle-loop":
		var body struct {
			Loop bool `json:"loop"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.mu.Lock()
		g.loop = body.Loop
		g.mu.Unlock()
	default:
		g.log.Debug("preview guest ignored unknown command", zap.String("type", env.Type))
	}
}

// loadCode replaces the runtime wholesale: a fresh VM per load keeps state
// from one composition from leaking into the next.
func (g *PreviewEngine) loadCode(code string, width, height, fps, duration int) {
	rt := newRuntime(g.cfg)
	rt.setGlobal("compositionWidth", width)
	rt.setGlobal("compositionHeight", height)
	rt.setGlobal("fps", fps)
	rt.setGlobal("durationInFrames", duration)

	g.mu.Lock()
	vars := g.vars
	g.mu.Unlock()
	rt.setGlobal("inputs", vars)

	if _, err := rt.run("composition.js", code); err != nil {
		g.emitError(err)
		return
	}

	g.mu.Lock()
	g.rt = rt
	g.frame = 0
	if fps > 0 {
		g.fps = fps
	}
	if duration > 0 {
		g.duration = duration
	}
	g.mu.Unlock()

	g.em.emit("frame-update", map[string]int{"frame": 0})
}

func (g *PreviewEngine) updateVariables(vars map[string]any) {
	// The goja VM is not safe for concurrent use; all runtime access
	// happens under g.mu.
	g.mu.Lock()
	g.vars = vars
	if g.rt != nil {
		g.rt.setGlobal("inputs", vars)
	}
	g.mu.Unlock()
}

func (g *PreviewEngine) setPlaying(playing bool) {
	g.mu.Lock()
	changed := g.playing != playing
	g.playing = playing
	g.mu.Unlock()
	if changed {
		g.em.emit("playback-state", map[string]bool{"isPlaying": playing})
	}
}

func (g *PreviewEngine) seek(frame int) {
	g.mu.Lock()
	if frame < 0 {
		frame = 0
	}
	if g.duration > 0 && frame >= g.duration {
		frame = g.duration - 1
	}
	g.frame = frame
	g.mu.Unlock()
	g.renderFrame(frame)
}

// clock drives playback. Tick rate tracks the current fps and speed; while
// paused it idles at the same cadence waiting for a state change.
func (g *PreviewEngine) clock() {
	for {
		g.mu.Lock()
		fps, speed := g.fps, g.speed
		g.mu.Unlock()

		interval := time.Duration(float64(time.Second) / (float64(fps) * speed))
		select {
		case <-g.done:
			return
		case <-time.After(interval):
		}
		g.tick()
	}
}

func (g *PreviewEngine) tick() {
	g.mu.Lock()
	if !g.playing || g.duration <= 0 {
		g.mu.Unlock()
		return
	}
	g.frame++
	stopped := false
	if g.frame >= g.duration {
		if g.loop {
			g.frame = 0
		} else {
			g.frame = g.duration - 1
			g.playing = false
			stopped = true
		}
	}
	frame := g.frame
	g.mu.Unlock()

	g.renderFrame(frame)
	if stopped {
		g.em.emit("playback-state", map[string]bool{"isPlaying": false})
	}
}

// renderFrame invokes the composition's frame callback, if any, and
// publishes the new frame position.
func (g *PreviewEngine) renderFrame(frame int) {
	g.mu.Lock()
	var callErr error
	if g.rt != nil {
		_, callErr = g.rt.call("frame", frame, g.vars)
	}
	g.mu.Unlock()

	if callErr != nil {
		g.emitError(callErr)
	}
	g.em.emit("frame-update", map[string]int{"frame": frame})
}

func (g *PreviewEngine) emitError(err error) {
	payload := map[string]string{"message": err.Error()}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		payload["stack"] = exc.String()
	}
	g.em.emit("error", payload)
}
