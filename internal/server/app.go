// Package server wires the remote store: PostgreSQL storage, the optional
// S3 archive of deleted records, and the gRPC endpoint devices sync against.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/server/archive"
	"github.com/dmitrijs2005/agencysync/internal/server/config"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/agencysync/internal/server/services"
	"go.uber.org/multierr"

	gs "github.com/dmitrijs2005/agencysync/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	records *services.RecordService
	devices *services.DeviceService
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app, err := newApp(ctx, c, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	logger = logging.OrNop(logger)

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	var arch archive.Archiver = archive.NopArchiver{}
	if c.ArchiveEnabled() {
		s3a, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		arch = s3a
		logger.Info(ctx, "archiving deleted records", "bucket", c.S3Bucket)
	}

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		records: services.NewRecordService(db, rm, arch, logger),
		devices: services.NewDeviceService(db, rm, c, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.records, app.devices, app.config.SecretKey)
	err := s.Run(ctx)

	app.logger.Info(ctx, "Stopping app...")
	return multierr.Append(err, app.db.Close())
}
