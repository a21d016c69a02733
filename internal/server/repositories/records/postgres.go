package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const columns = `table_name, id, code, origin_id, payload, updated_by, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r       models.Record
		origin  sql.NullString
		payload []byte
	)
	if err := row.Scan(&r.Table, &r.ID, &r.Code, &origin, &payload, &r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.OriginID = origin.String
	r.Payload = map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &r, nil
}

func queryOne(row *sql.Row) (*models.Record, error) {
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r, nil
}

func encodePayload(p map[string]any) ([]byte, error) {
	if p == nil {
		p = map[string]any{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Get(ctx context.Context, table, id string) (*models.Record, error) {
	query :=
		`SELECT ` + columns + ` FROM records
		 WHERE table_name = $1 AND id = $2`

	return queryOne(r.db.QueryRowContext(ctx, query, table, id))
}

func (r *PostgresRepository) GetByOrigin(ctx context.Context, table, originID string) (*models.Record, error) {
	query :=
		`SELECT ` + columns + ` FROM records
		 WHERE table_name = $1 AND origin_id = $2`

	return queryOne(r.db.QueryRowContext(ctx, query, table, originID))
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	payload, err := encodePayload(rec.Payload)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO records (table_name, id, code, origin_id, payload, updated_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 RETURNING ` + columns

	out, err := scanRecord(r.db.QueryRowContext(ctx, query,
		rec.Table, rec.ID, rec.Code, nullable(rec.OriginID), payload, rec.UpdatedBy, rec.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, table, id string, payload map[string]any, updatedBy string, now time.Time) (*models.Record, error) {
	b, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE records SET payload = $3, updated_by = $4, updated_at = $5
		 WHERE table_name = $1 AND id = $2
		 RETURNING ` + columns

	return queryOne(r.db.QueryRowContext(ctx, query, table, id, b, updatedBy, now))
}

func (r *PostgresRepository) Delete(ctx context.Context, table, id string) (*models.Record, error) {
	query :=
		`DELETE FROM records
		 WHERE table_name = $1 AND id = $2
		 RETURNING ` + columns

	return queryOne(r.db.QueryRowContext(ctx, query, table, id))
}
