// Package rtlog is the runtime's debug trace logger: a plain
// log.Logger gated by the ARM64JIT_DEBUG environment variable. When
// the variable is unset every Printf is a cheap no-op, so trace lines
// can stay in hot paths like block installation.
package rtlog

import (
	"log"
	"os"
)

var (
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("ARM64JIT_DEBUG") == "" {
		return
	}
	enabled = true
	logger = log.New(os.Stderr, "arm64jit: ", log.Ltime|log.Lmicroseconds)
}

// Enabled reports whether debug tracing is active, for callers that
// want to skip building expensive arguments.
func Enabled() bool {
	return enabled
}

// Printf logs one trace line when ARM64JIT_DEBUG is set.
func Printf(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}
