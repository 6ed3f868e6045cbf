package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// traceEnabled gates per-frame trace output. The frame loop emits one line
// per frame at trace level; leaving this off keeps the main log quiet
// during normal runs.
var traceEnabled = false

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// EnableTrace turns per-frame trace logging on or off.
func EnableTrace(on bool) {
	traceEnabled = on
}

// Tracef logs through Logf only when trace output is enabled.
func Tracef(format string, v ...interface{}) {
	if traceEnabled {
		Logf(format, v...)
	}
}
