//go:build !stdlog && !nolog

package build

// LoggingType is a log type that writes through the logger handed to
// NewSubLogger, if present.
const LoggingType = LogTypeDefault
