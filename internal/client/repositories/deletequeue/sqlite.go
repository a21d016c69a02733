package deletequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, table, recordID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO delete_queue (table_name, record_id, operation, enqueued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, record_id) DO NOTHING`,
		table, recordID, string(models.OperationDelete), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to enqueue delete of %s/%s: %w", table, recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, table string) ([]models.DeleteQueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, table_name, record_id, operation, enqueued_at
		FROM delete_queue WHERE table_name = ? ORDER BY id`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to select delete queue: %w", err)
	}
	defer rows.Close()

	var result []models.DeleteQueueEntry
	for rows.Next() {
		var (
			e  models.DeleteQueueEntry
			op string
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &op, &at); err != nil {
			return nil, err
		}
		e.Operation = models.Operation(op)
		e.EnqueuedAt = time.UnixMilli(at).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Has(ctx context.Context, table, recordID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM delete_queue WHERE table_name = ? AND record_id = ?)`, table, recordID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check delete queue for %s/%s: %w", table, recordID, err)
	}
	return exists, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, entryID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM delete_queue WHERE id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to remove delete queue entry %d: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context, table string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delete_queue WHERE table_name = ?`, table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count delete queue: %w", err)
	}
	return n, nil
}
