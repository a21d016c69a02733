package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
)

// Repository is the local store contract used by the sync engine and by the
// record service.
type Repository interface {
	// GetAll returns every row of table, tracked or not, ordered by id.
	GetAll(ctx context.Context, table string) ([]*models.Record, error)

	// Get returns one row or common.ErrNotFound.
	Get(ctx context.Context, table, id string) (*models.Record, error)

	// Put inserts or replaces a row as a local edit: the revision is bumped and
	// the failure counters are reset. rec.Revision is updated in place.
	Put(ctx context.Context, rec *models.Record) error

	// Delete purges a row. Deleting a missing row is not an error.
	Delete(ctx context.Context, table, id string) error

	// Promote atomically replaces the row oldID, read at revision, with rec,
	// which is stored as confirmed (needs_sync=false, synced_at=at). A row
	// edited since that revision is re-keyed instead and stays dirty; a row
	// deleted since then is not brought back.
	Promote(ctx context.Context, table, oldID string, revision int64, rec *models.Record, at time.Time) (models.PromoteOutcome, error)

	// MarkSynced confirms an upload of the given revision. It reports false and
	// changes nothing when the row was edited after that revision was read.
	// A non-empty code replaces the stored one.
	MarkSynced(ctx context.Context, table, id string, revision int64, code string, at time.Time) (bool, error)

	// RecordFailure stores a rejected attempt for the given revision.
	RecordFailure(ctx context.Context, table, id string, revision int64, attempts int, next time.Time, msg string) error

	// Requeue clears the failure counters and marks the row dirty again.
	Requeue(ctx context.Context, table, id string) error

	// HasPending reports whether table holds a temporary row or a dirty row
	// that is due at now and not quarantined.
	HasPending(ctx context.Context, table string, now time.Time, maxAttempts int) (bool, error)
}
