package logging

import "sync"

var (
	globalMu sync.RWMutex
	global   = New(Config{Level: LevelInfo, Format: FormatJSON})
)

// Default returns the process-wide default logger.
func Default() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetDefault replaces the process-wide default logger.
// Passing nil is a no-op.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}
