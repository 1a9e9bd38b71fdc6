package utils

import "time"

// UTCNow returns the current time in UTC. Every persisted timestamp in the
// module goes through this so rows compare consistently across hosts.
func UTCNow() time.Time {
	return time.Now().UTC()
}
