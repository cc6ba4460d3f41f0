package cache

import "sync/atomic"

var forceRefresh atomic.Bool

// SetForceRefresh toggles the process-wide "always fresh" mode. While it is
// on, keyed and query cache reads always miss; writes still populate them.
func SetForceRefresh(on bool) {
	forceRefresh.Store(on)
}

// ForceRefresh reports whether the "always fresh" mode is on.
func ForceRefresh() bool {
	return forceRefresh.Load()
}
