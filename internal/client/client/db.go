package client

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/agencysync/internal/client/migrations"
	"github.com/dmitrijs2005/agencysync/internal/client/repositories/deletequeue"
	"github.com/dmitrijs2005/agencysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/agencysync/internal/client/repositories/records"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
	"github.com/dmitrijs2005/agencysync/internal/filex"
	_ "modernc.org/sqlite"
)

// Repositories bundles the local store repositories bound to one handle.
type Repositories struct {
	db          *sql.DB
	Records     records.Repository
	DeleteQueue deletequeue.Repository
	Metadata    metadata.Repository
}

func newRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Records:     records.NewSQLiteRepository(db),
		DeleteQueue: deletequeue.NewSQLiteRepository(db),
		Metadata:    metadata.NewSQLiteRepository(db),
	}
}

// NewRepositories binds the repositories to an open, migrated database.
func NewRepositories(db *sql.DB) *Repositories {
	r := newRepositories(db)
	r.db = db
	return r
}

// WithTx runs fn with repositories bound to a single transaction.
func (r *Repositories) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Repositories) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepositories(tx))
	})
}

func (r *Repositories) Close() error {
	return r.db.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// InitDatabase opens the SQLite database at dsn and applies migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps transactions from
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
