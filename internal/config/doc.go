// Package config provides 12-factor configuration management for the
// studio backend.
//
// Configuration is loaded from environment variables with sensible
// defaults. An optional YAML file (FRAMEWRIGHT_CONFIG) is applied first,
// so environment variables always win.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, allowed origins)
//   - Logging: log level and output mode
//   - Guest: in-process guest VM limits
//   - RateLimit: per-connection inbound message limits
package config
