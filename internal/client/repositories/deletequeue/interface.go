// Package deletequeue stores delete intents that have not been sent to the
// remote store yet. All tables share one physical queue.
package deletequeue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
)

type Repository interface {
	// Enqueue records a delete intent. Enqueuing the same record twice keeps
	// the first entry.
	Enqueue(ctx context.Context, table, recordID string, at time.Time) error
	// GetAll returns the entries of table in enqueue order.
	GetAll(ctx context.Context, table string) ([]models.DeleteQueueEntry, error)
	Has(ctx context.Context, table, recordID string) (bool, error)
	Delete(ctx context.Context, entryID int64) error
	Count(ctx context.Context, table string) (int, error)
}
