package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
)

const selectColumns = `table_name, id, code, data, needs_sync, synced_at, deleted,
	revision, attempts, next_attempt_at, last_error`

// SQLiteRepository implements Repository on top of a DBTX, so it can run
// standalone or inside a caller's transaction.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func needsSyncValue(rec *models.Record) sql.NullBool {
	if !rec.Tracked {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: rec.NeedsSync, Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec       models.Record
		data      string
		needsSync sql.NullBool
		syncedAt  sql.NullInt64
		nextAt    sql.NullInt64
	)
	if err := row.Scan(&rec.Table, &rec.ID, &rec.Code, &data, &needsSync, &syncedAt, &rec.Deleted,
		&rec.Revision, &rec.Attempts, &nextAt, &rec.LastError); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", rec.Table, rec.ID, err)
	}
	rec.Tracked = needsSync.Valid
	rec.NeedsSync = needsSync.Bool
	rec.SyncedAt = fromMillis(syncedAt)
	rec.NextAttemptAt = fromMillis(nextAt)
	return &rec, nil
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if b, ok := r.db.(dbx.Beginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, r.db)
}

func (r *SQLiteRepository) GetAll(ctx context.Context, table string) ([]*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records WHERE table_name = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, table, id string) (*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records WHERE table_name = ? AND id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, table, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", table, id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.Record) error {
	data, err := encodeData(rec.Data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", rec.Table, rec.ID, err)
	}

	query := `INSERT INTO records (table_name, id, code, data, needs_sync, synced_at, deleted, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(table_name, id) DO UPDATE SET
			code = excluded.code,
			data = excluded.data,
			needs_sync = excluded.needs_sync,
			synced_at = excluded.synced_at,
			deleted = excluded.deleted,
			revision = records.revision + 1,
			attempts = 0,
			next_attempt_at = NULL,
			last_error = ''
		RETURNING revision`

	var revision int64
	err = r.db.QueryRowContext(ctx, query, rec.Table, rec.ID, rec.Code, data,
		needsSyncValue(rec), toMillis(rec.SyncedAt), rec.Deleted).Scan(&revision)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", rec.Table, rec.ID, err)
	}
	rec.Revision = revision
	rec.Attempts = 0
	rec.NextAttemptAt = nil
	rec.LastError = ""
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, table, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", table, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Promote(ctx context.Context, table, oldID string, revision int64, rec *models.Record, at time.Time) (models.PromoteOutcome, error) {
	data, err := encodeData(rec.Data)
	if err != nil {
		return models.PromoteGone, fmt.Errorf("encode %s/%s: %w", table, rec.ID, err)
	}

	outcome := models.PromoteApplied
	err = r.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			current int64
			deleted bool
		)
		err := tx.QueryRowContext(ctx, `SELECT revision, deleted FROM records WHERE table_name = ? AND id = ?`,
			table, oldID).Scan(&current, &deleted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			outcome = models.PromoteGone
			return nil
		case err != nil:
			return fmt.Errorf("failed to read record %s/%s: %w", table, oldID, err)
		}

		if deleted {
			outcome = models.PromoteGone
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, oldID); err != nil {
				return fmt.Errorf("failed to remove deleted record %s/%s: %w", table, oldID, err)
			}
			return nil
		}

		if current != revision {
			outcome = models.PromoteEdited
			return rekey(ctx, tx, table, oldID, rec, at)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, oldID); err != nil {
			return fmt.Errorf("failed to remove temporary record %s/%s: %w", table, oldID, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO records (table_name, id, code, data, needs_sync, synced_at, deleted, revision)
			VALUES (?, ?, ?, ?, 0, ?, 0, 1)
			ON CONFLICT(table_name, id) DO UPDATE SET
				code = excluded.code,
				data = excluded.data,
				needs_sync = 0,
				synced_at = excluded.synced_at,
				deleted = 0,
				revision = records.revision + 1,
				attempts = 0,
				next_attempt_at = NULL,
				last_error = ''`,
			table, rec.ID, rec.Code, data, at.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert promoted record %s/%s: %w", table, rec.ID, err)
		}
		return nil
	})
	if err != nil {
		return models.PromoteGone, err
	}
	return outcome, nil
}

// rekey moves the locally edited row oldID to the canonical id and code. The
// local data is kept and the row stays dirty so the edit is uploaded next.
func rekey(ctx context.Context, tx dbx.DBTX, table, oldID string, rec *models.Record, at time.Time) error {
	if rec.ID != oldID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, rec.ID); err != nil {
			return fmt.Errorf("failed to clear %s/%s: %w", table, rec.ID, err)
		}
	}
	_, err := tx.ExecContext(ctx, `UPDATE records SET
			id = ?,
			code = ?,
			needs_sync = 1,
			synced_at = ?,
			revision = revision + 1,
			attempts = 0,
			next_attempt_at = NULL,
			last_error = ''
		WHERE table_name = ? AND id = ?`,
		rec.ID, rec.Code, at.UnixMilli(), table, oldID)
	if err != nil {
		return fmt.Errorf("failed to re-key record %s/%s: %w", table, oldID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, table, id string, revision int64, code string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE records SET
			needs_sync = 0,
			synced_at = ?,
			code = CASE WHEN ? = '' THEN code ELSE ? END,
			attempts = 0,
			next_attempt_at = NULL,
			last_error = ''
		WHERE table_name = ? AND id = ? AND revision = ?`,
		at.UnixMilli(), code, code, table, id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s/%s synced: %w", table, id, err)
	}
	return dbx.RowsAffected(res)
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, table, id string, revision int64, attempts int, next time.Time, msg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE table_name = ? AND id = ? AND revision = ?`,
		attempts, next.UnixMilli(), msg, table, id, revision)
	if err != nil {
		return fmt.Errorf("failed to record failure for %s/%s: %w", table, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Requeue(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE records SET
			needs_sync = 1, attempts = 0, next_attempt_at = NULL, last_error = '', revision = revision + 1
		WHERE table_name = ? AND id = ? AND needs_sync IS NOT NULL`, table, id)
	if err != nil {
		return fmt.Errorf("failed to requeue %s/%s: %w", table, id, err)
	}
	ok, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) HasPending(ctx context.Context, table string, now time.Time, maxAttempts int) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM records
		WHERE table_name = ?
		  AND needs_sync IS NOT NULL
		  AND (instr(code, ?) > 0 OR (needs_sync = 1 AND deleted = 0))
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		  AND (? <= 0 OR attempts < ?)
	)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, table, common.TemporaryCodeMarker, now.UnixMilli(),
		maxAttempts, maxAttempts).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to scan %s for pending records: %w", table, err)
	}
	return exists, nil
}
