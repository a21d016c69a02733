package sequences

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/agencysync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Next(ctx context.Context, table string, year int) (int64, error) {
	query :=
		`INSERT INTO code_sequences (table_name, year, last_value)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (table_name, year)
		 DO UPDATE SET last_value = code_sequences.last_value + 1
		 RETURNING last_value`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, table, year).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
