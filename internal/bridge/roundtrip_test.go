package bridge_test

import (
	"sync"
	"testing"
	"time"

	"github.com/framewright/backend/internal/bridge"
	"github.com/framewright/backend/internal/guest/vm"
)

// These tests wire a bridge session to a real in-process guest engine and
// exercise the full handshake → command → event loop.

func waitUntil(t *testing.T, timeout time.Duration, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !pred() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEditorRoundTrip(t *testing.T) {
	var (
		mu      sync.Mutex
		ready   bool
		draft   string
		markers [][]bridge.Marker
	)

	engine := vm.NewEditorEngine(nil)
	editor := bridge.NewEditor(engine, bridge.EditorCallbacks{
		OnReady: func() {
			mu.Lock()
			ready = true
			mu.Unlock()
		},
		OnChange: func(code string) {
			mu.Lock()
			draft = code
			mu.Unlock()
		},
		OnError: func(ms []bridge.Marker) {
			mu.Lock()
			markers = append(markers, ms)
			mu.Unlock()
		},
	}, bridge.Options{})
	defer editor.Dispose()
	defer engine.Close()

	// Content staged before the guest exists is flushed on the
	// handshake; the engine analyzes it and reports clean diagnostics.
	editor.SetContent("const intro = 'fade';")
	engine.Start(editor.Receive)

	waitUntil(t, time.Second, "readiness", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ready
	})
	waitUntil(t, time.Second, "initial diagnostics", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(markers) > 0
	})
	mu.Lock()
	if len(markers[0]) != 0 {
		t.Errorf("clean content produced %d markers", len(markers[0]))
	}
	mu.Unlock()

	// A guest-side edit reaches OnChange after the notify debounce.
	engine.Edit("const intro = 'cut';")
	waitUntil(t, 2*time.Second, "change notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return draft == "const intro = 'cut';"
	})

	// Broken edits surface as markers.
	engine.Edit("const = ;")
	waitUntil(t, time.Second, "syntax markers", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(markers[len(markers)-1]) > 0
	})
}

func TestEditorRoundTripGetCode(t *testing.T) {
	var (
		mu    sync.Mutex
		draft string
	)
	engine := vm.NewEditorEngine(nil)
	editor := bridge.NewEditor(engine, bridge.EditorCallbacks{
		OnChange: func(code string) {
			mu.Lock()
			draft = code
			mu.Unlock()
		},
	}, bridge.Options{})
	defer editor.Dispose()
	defer engine.Close()

	engine.Start(editor.Receive)
	waitUntil(t, time.Second, "readiness", editor.IsReady)

	editor.SetCode("anchor();")
	editor.GetCode()

	// get-code answers with a code-change event, which flows back
	// through the same debounced notify path.
	waitUntil(t, 2*time.Second, "code round trip", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return draft == "anchor();"
	})
}

func TestPreviewRoundTrip(t *testing.T) {
	var (
		mu      sync.Mutex
		frames  []int
		playing []bool
	)

	engine := vm.NewPreviewEngine(vm.DefaultRuntimeConfig(), nil)
	preview := bridge.NewPreview(engine, bridge.PreviewCallbacks{
		OnFrameUpdate: func(frame int) {
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()
		},
		OnPlaybackStateChange: func(isPlaying bool) {
			mu.Lock()
			playing = append(playing, isPlaying)
			mu.Unlock()
		},
	}, bridge.Options{})
	defer preview.Dispose()
	defer engine.Close()

	preview.SetComposition(bridge.Composition{
		Width: 640, Height: 360, FPS: 100, DurationInFrames: 50,
	})
	preview.SetContent("var last = -1; function frame(n) { last = n; }")
	engine.Start(preview.Receive)

	waitUntil(t, time.Second, "readiness", preview.IsReady)
	waitUntil(t, time.Second, "initial frame", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) > 0 && frames[0] == 0
	})

	preview.Play()
	waitUntil(t, time.Second, "playback start", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(playing) > 0 && playing[0]
	})
	waitUntil(t, 2*time.Second, "frame advance", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) > 0 && frames[len(frames)-1] >= 3
	})

	preview.Pause()
	waitUntil(t, time.Second, "playback stop", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(playing) >= 2 && !playing[len(playing)-1]
	})

	preview.Seek(42)
	waitUntil(t, time.Second, "seek position", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return frames[len(frames)-1] == 42
	})
}

func TestPreviewRoundTripScriptError(t *testing.T) {
	var (
		mu      sync.Mutex
		message string
		stack   string
	)
	engine := vm.NewPreviewEngine(vm.DefaultRuntimeConfig(), nil)
	preview := bridge.NewPreview(engine, bridge.PreviewCallbacks{
		OnError: func(msg, st string) {
			mu.Lock()
			message, stack = msg, st
			mu.Unlock()
		},
	}, bridge.Options{})
	defer preview.Dispose()
	defer engine.Close()

	engine.Start(preview.Receive)
	waitUntil(t, time.Second, "readiness", preview.IsReady)

	preview.LoadCode("throw new Error('no scene');")
	waitUntil(t, time.Second, "script error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return message != ""
	})

	mu.Lock()
	defer mu.Unlock()
	if stack == "" {
		t.Error("thrown script error arrived without a stack")
	}
}
