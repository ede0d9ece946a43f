// Package logx configures bioswatch's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - JSON output for Lambda/CloudWatch and file sinks
//   - A zero value that is safe to use (no-op)
package logx
