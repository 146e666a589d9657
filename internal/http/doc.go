// Package http provides the REST façade over the bridge control verbs.
//
// Every imperative verb of the editor and preview bridges gets one
// endpoint; verbs are fire-and-forget, so these return 202 Accepted
// without waiting for the guest. Declarative inputs (content, variables,
// composition) have their own endpoints routing through the bridge's
// pending buffer and debounce policies.
//
// Endpoints:
//   - Health: / and /health
//   - Sessions: /sessions (create headless, list), /sessions/:id
//   - Editor verbs: /sessions/:id/editor/...
//   - Preview verbs: /sessions/:id/preview/...
package http
