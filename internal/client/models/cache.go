package models

import "time"

// ConnectivityCache is the scheduler's memo of the last pending-work scan.
type ConnectivityCache struct {
	IsOnline   bool
	HasPending bool
	CheckedAt  time.Time
}

// Expired reports whether the cached verdict is older than ttl. A zero
// CheckedAt is always expired.
func (c ConnectivityCache) Expired(now time.Time, ttl time.Duration) bool {
	if c.CheckedAt.IsZero() {
		return true
	}
	return now.Sub(c.CheckedAt) >= ttl
}
