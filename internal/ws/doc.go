// Package ws adapts browser-hosted guests to the bridge.
//
// The studio frontend runs each guest surface in a sandboxed iframe and
// relays its message channel over one WebSocket per surface. This package
// upgrades those connections, wraps each one as a bridge.Guest (writes are
// commands, reads are events), and registers the resulting session.
//
// Inbound frames are rate limited per connection; excess frames are
// dropped, consistent with the bridge's silent-drop policy for hostile or
// broken guests.
//
// Routes:
//   - GET /ws/editor: attach an editor guest
//   - GET /ws/preview: attach a preview guest
package ws
