// Package monitoring provides Prometheus metrics for the bridge layer.
//
// The bridge's public contract stays silent about dropped messages; this
// package is where they become observable. Metrics:
//   - framewright_bridge_messages_sent_total{bridge,type}
//   - framewright_bridge_messages_received_total{bridge,type}
//   - framewright_bridge_messages_dropped_total{bridge}
//   - framewright_bridge_sessions_active{bridge}
//   - framewright_ws_connections
package monitoring
