package utils

import (
	"log"
	"runtime/debug"
)

// GoSafe runs fn in a new goroutine and recovers from panics.
func GoSafe(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

// Recover logs a recovered panic with its stack trace.
func Recover() {
	if r := recover(); r != nil {
		log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
	}
}
