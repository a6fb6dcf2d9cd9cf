// Package monitoring holds the shared diagnostic logger used by the
// visualiser and other long-running helpers that sit outside the
// per-package ops/diag/trace streams.
package monitoring

import "log"

// Logf logs one diagnostic line. It is log.Printf until SetLogger
// replaces it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. A nil f discards output.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
