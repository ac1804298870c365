// Package logx configures runrelay's structured logging.
//
// It wraps zerolog behind a small value type (logx.Logger) so that:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON-structured
//   - Warnings can optionally be mirrored to the chat channel (min-level + rate limiting)
package logx
