// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing console-encoded lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - key-value helpers (DebugKV, InfoKV, WarnKV, ErrorKV).
//
// The resolver, builder and installer accept a context and extract the
// logger from it, so every pipeline stage logs under its service name.
package logger
