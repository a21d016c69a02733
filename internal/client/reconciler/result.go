package reconciler

import "time"

// Result summarizes one pass.
type Result struct {
	Table string
	// Skipped is set when another pass over the table was already running.
	Skipped bool
	// Interrupted is set when the context was cancelled mid-pass.
	Interrupted bool

	Promoted int
	Created  int
	Updated  int
	// Purged counts local rows removed without a remote write: delete-wins
	// and remotely deleted records.
	Purged  int
	Deleted int
	// Dropped counts delete intents discarded after a non-retryable failure.
	Dropped int
	Failed  int

	Duration time.Duration
}

// RemoteWrites is the number of create, update and delete requests that
// succeeded.
func (r Result) RemoteWrites() int {
	return r.Promoted + r.Created + r.Updated + r.Deleted
}

// Changed reports whether the pass changed local or remote state.
func (r Result) Changed() bool {
	return r.RemoteWrites() > 0 || r.Purged > 0 || r.Dropped > 0
}

func (r Result) logArgs() []any {
	return []any{
		"table", r.Table,
		"promoted", r.Promoted,
		"created", r.Created,
		"updated", r.Updated,
		"purged", r.Purged,
		"deleted", r.Deleted,
		"dropped", r.Dropped,
		"failed", r.Failed,
		"interrupted", r.Interrupted,
		"duration", r.Duration,
	}
}
