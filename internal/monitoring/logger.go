// Package monitoring carries the process-wide diagnostic logger. The control
// loops (follow ticks, stream supervision, NMEA ingest) log through Logf so
// tests can mute them and embedders can redirect them.
package monitoring

import "log"

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
// Replace it with SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. A nil f mutes logging.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
