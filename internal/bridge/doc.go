/*
Package bridge implements the host side of the message channel between the
studio backend and its sandboxed guest surfaces (the code editor and the
live preview renderer).

# Overview

Each guest runs in an isolated execution environment the host cannot
introspect or call into. All interaction crosses a narrow, asynchronous,
serialized channel carrying flat JSON messages of the form:

	{"type": "<tag>", "payload": {...}}

Messages are one-way. Host→guest messages are commands; guest→host messages
are events. No message carries a correlation id and no reply is ever
enforced: a "get-code" command is expected to provoke a later "code-change"
event, but nothing in the protocol guarantees it.

# Architecture

The package is built from four pieces:

 1. Envelope & vocabulary: a closed set of message types per direction,
    with a payload validator for every inbound type. Inbound messages that
    fail structural parsing or vocabulary validation are dropped silently;
    a compromised or buggy guest must not be able to crash or desynchronize
    the host. Drops are counted and logged at debug level only.
 2. Session core: the readiness handshake (Uninitialized → Ready, exactly
    once per session), the latest-intent pending buffer for content set
    before readiness, and teardown.
 3. Debounce multiplexer: independently timed coalescing for inbound
    change notifications (500ms), outbound content reloads (1s), and
    outbound variable updates (200ms). Each subject owns its own
    cancellable timer; disposing the session cancels all of them.
 4. Control façade: imperative verbs (format, undo, seek, play, ...) that
    map 1:1 to outbound commands and bypass debounce entirely.

# Sessions

NewEditor and NewPreview each produce an independent session bound to one
Guest. Sessions share no state, are never reused after Dispose, and own
their timers and pending buffer exclusively.

# Usage Example

	ed := bridge.NewEditor(guest, bridge.EditorCallbacks{
		OnReady:  func() { log.Info("editor up") },
		OnChange: func(code string) { store.Draft(code) },
	}, opts)
	defer ed.Dispose()

	ed.SetContent(initial) // buffered until the guest signals ready
	ed.FormatCode()        // immediate, fire-and-forget
*/
package bridge
