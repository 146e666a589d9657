/*
Package vm provides in-process guest runtimes backed by the goja
JavaScript engine.

# Overview

The bridge treats guests as opaque: anything that accepts serialized
commands and emits serialized events qualifies. In the studio frontend the
guests are browser iframes; this package supplies the other substitutable
implementation: in-process engines used by headless sessions (server-side
preview rendering) and by tests that need a real protocol peer.

Two engines are provided:

  - EditorEngine: a document model with an undo/redo stack, a naive
    formatter, and goja-parser-based syntax analysis that reports
    diagnostics as error events with line/column markers.
  - PreviewEngine: evaluates user composition code in a locked-down goja
    runtime (dangerous globals removed, interrupt on timeout) and drives a
    frame clock honoring play/pause/seek/speed/loop.

# Security Model

Evaluated code cannot:
  - access the filesystem or network
  - spawn processes or reach process globals
  - run past the configured execution timeout

# Ordering

Each engine serializes its emissions through a single pump goroutine, so
events reach the host in emission order, the only ordering guarantee the
channel makes.
*/
package vm
