// Package safego runs fire-and-forget goroutines behind a panic barrier.
// Activity writes, cache invalidation fan-out, and the preference pruner all
// run off the request path; a panic in any of them must end that one task,
// not the process.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go starts fn on its own goroutine. A panic inside fn is logged together
// with the goroutine's stack and then discarded.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
