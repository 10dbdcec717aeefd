// Package clock provides the gateway's two time-adjacent primitives:
// monotonic millisecond timestamps and globally unique session IDs.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// processStart anchors NowMillis: its wall-clock reading gives the epoch
// offset and its monotonic reading measures elapsed time.
var processStart = time.Now()

// NowMillis returns the current time as milliseconds since the Unix epoch,
// suitable for every timestamp_ms field on the wire. Elapsed time is read
// from the monotonic clock, so a later call never returns a smaller value
// even if the system wall clock is stepped back.
func NowMillis() int64 {
	return processStart.UnixMilli() + time.Since(processStart).Milliseconds()
}

// NewSessionID returns a fresh, globally unique session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
