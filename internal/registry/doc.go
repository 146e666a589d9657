// Package registry tracks live bridge sessions.
//
// Each embedding surface (editor or preview) gets one Session record for
// its lifetime. The record carries the bridge control handle plus the
// latest host-observed guest state (draft content, diagnostics, frame
// position, playback state) fed by the bridge callbacks.
//
// Sessions are never reused: removing one disposes its bridge and closes
// its guest; a remount always produces a fresh record.
package registry
