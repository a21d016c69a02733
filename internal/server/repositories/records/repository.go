// Package records stores synchronized rows in PostgreSQL.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/server/models"
)

// Repository is the persistence contract for remote records.
//
// Get and GetByOrigin return common.ErrNotFound when no row matches. Insert
// returns common.ErrAlreadyExists when the id or origin id is taken. Update
// and Delete return common.ErrNotFound for a missing row.
type Repository interface {
	Get(ctx context.Context, table, id string) (*models.Record, error)
	GetByOrigin(ctx context.Context, table, originID string) (*models.Record, error)
	Insert(ctx context.Context, r *models.Record) (*models.Record, error)
	Update(ctx context.Context, table, id string, payload map[string]any, updatedBy string, now time.Time) (*models.Record, error)
	Delete(ctx context.Context, table, id string) (*models.Record, error)
}
