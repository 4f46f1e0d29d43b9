// Package logger wraps zap with a small API used across miapp:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled helpers (Info, InfoKV, Warnf, ErrorKV, ...).
//
// Packages never hold a logger of their own; they pull it from the context
// so names and fields added by the caller follow the call chain.
package logger
