package util

import (
	"runtime/debug"

	"github.com/dsistake/dsistake/internal/logging"
)

// SafeGoWithName runs fn in a goroutine with panic recovery. The name is
// attached to the log entry so a crashed poller or watcher can be identified.
//
//	util.SafeGoWithName("stats-poller", func() {
//	    // goroutine code here
//	})
func SafeGoWithName(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("goroutine panic recovered",
					"goroutine", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
