// Package logger is the orchestra's small leveled logging facility: a
// mutex-guarded *log.Logger wrapping whatever io.Writer the host hands it
// (a file, os.Stderr, or a bytes.Buffer in tests), so nothing here ever
// has to own a file handle.
package logger

import (
	"io"
	"log"
	"sync"
)

var (
	mu     sync.Mutex
	target *log.Logger
)

// Init points the global logger at w. Passing io.Discard silences it.
func Init(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	target = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// Info logs an info message.
func Info(format string, v ...interface{}) { logf("[INFO] ", format, v...) }

// Debug logs a debug message.
func Debug(format string, v ...interface{}) { logf("[DEBUG] ", format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { logf("[ERROR] ", format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { logf("[WARN] ", format, v...) }

func logf(prefix, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if target != nil {
		target.Printf(prefix+format, v...)
	}
}
