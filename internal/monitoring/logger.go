// Package monitoring holds the process-wide diagnostic logging hook shared
// by the batch-processing packages.
package monitoring

import (
	"log"
	"os"
)

// std tags pipeline diagnostics so they stay distinguishable from the host
// process's own logging when the core is embedded as a library.
var std = log.New(os.Stderr, "brewtrace: ", log.LstdFlags)

// Logf is the package-level diagnostic logger used by pipeline workers and
// stores. Tests or embedding processes can redirect or mute it via
// SetLogger.
var Logf = std.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Reset restores the default brewtrace-prefixed logger.
func Reset() {
	Logf = std.Printf
}
