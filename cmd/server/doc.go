// Package main is the entry point for the Framewright studio backend.
//
// The backend is the host side of two sandboxed guest surfaces, the code
// editor and the live preview renderer. It exposes:
//   - WebSocket attach points for browser-hosted guests
//   - REST control endpoints mapping 1:1 onto the bridge verbs
//   - Headless sessions backed by in-process goja guests
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML file via FRAMEWRIGHT_CONFIG
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8700
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
