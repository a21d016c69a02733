package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/agencysync/internal/dbx"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/records"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/sequences"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository standalone or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Sequences(db dbx.DBTX) sequences.Repository
	Devices(db dbx.DBTX) devices.Repository
}
