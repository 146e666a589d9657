package vm

import (
	"errors"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"

	"github.com/framewright/backend/internal/logging"
)

// marker mirrors the host's diagnostic shape.
type marker struct {
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
}

// EditorEngine is the in-process code-editing guest: a document model with
// an undo/redo stack, a naive formatter, and syntax analysis via the goja
// parser. It implements bridge.Guest.
type EditorEngine struct {
	log *logging.Logger
	em  *emitter

	mu        sync.Mutex
	doc       string
	undoStack []string
	redoStack []string
}

// NewEditorEngine creates an editor guest. Call Start with the bridge
// session's Receive before sending commands.
func NewEditorEngine(log *logging.Logger) *EditorEngine {
	if log == nil {
		log = logging.NewNop()
	}
	return &EditorEngine{
		log: log,
		em:  newEmitter(),
	}
}

// Start wires the guest's event stream to the host and performs the
// readiness handshake.
func (g *EditorEngine) Start(recv func(raw []byte)) {
	g.em.start(recv)
	g.em.emit("ready", nil)
}

// Close stops event delivery. Commands sent afterwards are ignored.
func (g *EditorEngine) Close() {
	g.em.close()
}

// Send implements bridge.Guest. Unrecognized or malformed commands are
// ignored; the guest mirrors the host's inbound-robustness policy.
func (g *EditorEngine) Send(raw []byte) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		g.log.Debug("editor guest ignored malformed command", zap.Error(err))
		return
	}

	switch env.Type {
	case "set-code":
		var body struct {
			Code string `json:"code"`
		}
		if sonic.Unmarshal(env.Payload, &body) != nil {
			return
		}
		g.setCode(body.Code)
	case "get-code":
		g.mu.Lock()
		doc := g.doc
		g.mu.Unlock()
		g.emitCode(doc)
	case "format":
		g.format()
	case "undo":
		g.undo()
	case "redo":
		g.redo()
	case "set-font-size", "set-word-wrap", "set-line-numbers",
		"reveal-line", "set-theme", "set-readonly":
		// Display-only commands; nothing observable to emit headless.
	default:
		g.log.Debug("editor guest ignored unknown command", zap.String("type", env.Type))
	}
}

// Edit applies a content change as if the user typed it, emitting a
// code-change event plus fresh diagnostics. Headless callers and tests use
// this to drive the guest side of the protocol.
func (g *EditorEngine) Edit(code string) {
	g.mu.Lock()
	g.undoStack = append(g.undoStack, g.doc)
	g.redoStack = nil
	g.doc = code
	g.mu.Unlock()

	g.emitCode(code)
	g.emitDiagnostics(code)
}

// setCode is the host-initiated content load. No code-change echo: the
// host already knows the content it set. Diagnostics still go out.
func (g *EditorEngine) setCode(code string) {
	g.mu.Lock()
	g.undoStack = append(g.undoStack, g.doc)
	g.redoStack = nil
	g.doc = code
	g.mu.Unlock()

	g.emitDiagnostics(code)
}

func (g *EditorEngine) format() {
	g.mu.Lock()
	formatted := formatSource(g.doc)
	changed := formatted != g.doc
	if changed {
		g.undoStack = append(g.undoStack, g.doc)
		g.redoStack = nil
		g.doc = formatted
	}
	g.mu.Unlock()

	if changed {
		g.emitCode(formatted)
	}
}

func (g *EditorEngine) undo() {
	g.mu.Lock()
	if len(g.undoStack) == 0 {
		g.mu.Unlock()
		return
	}
	g.redoStack = append(g.redoStack, g.doc)
	g.doc = g.undoStack[len(g.undoStack)-1]
	g.undoStack = g.undoStack[:len(g.undoStack)-1]
	doc := g.doc
	g.mu.Unlock()

	g.emitCode(doc)
}

func (g *EditorEngine) redo() {
	g.mu.Lock()
	if len(g.redoStack) == 0 {
		g.mu.Unlock()
		return
	}
	g.undoStack = append(g.undoStack, g.doc)
	g.doc = g.redoStack[len(g.redoStack)-1]
	g.redoStack = g.redoStack[:len(g.redoStack)-1]
	doc := g.doc
	g.mu.Unlock()

	g.emitCode(doc)
}

func (g *EditorEngine) emitCode(code string) {
	g.em.emit("code-change", map[string]string{"code": code})
}

// emitDiagnostics runs the goja parser over the document and reports
// syntax errors as markers. An empty list clears earlier diagnostics.
// Coverage is exactly the parser's grammar: constructs it accepts (e.g.
// `let` used as a non-strict identifier) are clean by definition.
func (g *EditorEngine) emitDiagnostics(code string) {
	markers := analyze(code)
	g.em.emit("error", map[string][]marker{"markers": markers})
}

func analyze(code string) []marker {
	markers := []marker{}
	_, err := parser.ParseFile(nil, "composition.js", code, 0)
	if err == nil {
		return markers
	}
	var list parser.ErrorList
	if errors.As(err, &list) {
		for _, perr := range list {
			markers = append(markers, marker{
				Message:     perr.Message,
				Severity:    "error",
				StartLine:   perr.Position.Line,
				StartColumn: perr.Position.Column,
				EndLine:     perr.Position.Line,
				EndColumn:   perr.Position.Column,
			})
		}
		return markers
	}
	markers = append(markers, marker{
		Message:   err.Error(),
		Severity:  "error",
		StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1,
	})
	return markers
}

// formatSource strips trailing whitespace per line and normalizes the file
// to end with exactly one newline. Deliberately conservative: the guest
// must never change program meaning.
func formatSource(src string) string {
	if src == "" {
		return src
	}
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = strings.TrimRight(out, "\n") + "\n"
	return out
}
