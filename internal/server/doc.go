// Package server wires the studio backend together: the HTTP router, the
// guest WebSocket endpoints, the session registry, metrics, and logging.
//
// Routes:
//   - GET  /            service banner
//   - GET  /health      health check
//   - GET  /metrics     Prometheus metrics
//   - GET  /ws/editor   attach a browser editor guest
//   - GET  /ws/preview  attach a browser preview guest
//   - POST /sessions    create a headless (in-process guest) session
//   - ...               per-verb control endpoints, see internal/http
package server
