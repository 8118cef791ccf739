// Package mono provides the host monotonic-clock fallback Timer uses when no
// on-device event recorder is attached, named after aistore's cmn/mono
// helper for the same "always have a monotonic source of truth" role.
package mono

import "time"

// epoch anchors NR's readings; time.Since on it uses the runtime's
// monotonic clock reading rather than the wall clock.
var epoch = time.Now()

// NR returns a monotonic nanosecond reading. It is not wall-clock time and
// is only ever meaningful as a difference between two readings.
func NR() int64 {
	return int64(time.Since(epoch))
}

// Since returns the elapsed duration since a reading produced by NR.
func Since(start int64) time.Duration {
	return time.Duration(NR() - start)
}
