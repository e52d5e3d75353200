package storage

import (
	"fmt"
	"strings"

	"SlotReplay/internal/logger"
)

// pebbleLogger routes Pebble's messages to the package logger.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "pebble")
}

// Fatalf must not return.
func (pebbleLogger) Fatalf(format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	logger.Error(msg, "component", "pebble")
	panic("pebble: " + msg)
}
