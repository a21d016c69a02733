// Package models holds the rows of the remote store.
package models

import "time"

// Record is a row of a synchronized table as the remote store keeps it.
// OriginID is the device-local id the row was created from, if any.
type Record struct {
	Table     string
	ID        string
	Code      string
	OriginID  string
	Payload   map[string]any
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
