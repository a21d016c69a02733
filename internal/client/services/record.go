package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/client"
	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/google/uuid"
)

// ChangeNotifier is told about every local mutation. The scheduler
// implements it by invalidating its pending-work cache.
type ChangeNotifier interface {
	DataChanged()
}

// CreateOptions controls how a new record is identified.
type CreateOptions struct {
	// Temporary assigns an unconfirmed code; the record is promoted to a
	// canonical id and code on the next successful pass.
	Temporary bool
}

// RecordService defines the record operations offered to the REPL and to
// other front ends.
//
// Contract:
//   - Create stores a new tracked record that needs sync.
//   - Update replaces the business fields of an existing record and marks it dirty.
//   - Delete purges a record and enqueues a delete intent for the remote store.
//     Temporary records never reached the remote store and are purged without one.
//   - Requeue releases a quarantined record for another attempt.
//
// Unknown tables fail with common.ErrValidation, missing records with
// common.ErrNotFound.
type RecordService interface {
	Create(ctx context.Context, table string, data map[string]any, opts CreateOptions) (*models.Record, error)
	Update(ctx context.Context, table, id string, data map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	Get(ctx context.Context, table, id string) (*models.Record, error)
	List(ctx context.Context, table string) ([]*models.Record, error)
	Requeue(ctx context.Context, table, id string) error
	Tables() []string
}

type recordService struct {
	repos    *client.Repositories
	tables   []string
	notifier ChangeNotifier
	log      logging.Logger
	now      func() time.Time
}

// NewRecordService constructs a RecordService over the local repositories.
// notifier may be nil.
func NewRecordService(repos *client.Repositories, tables []string, notifier ChangeNotifier, log logging.Logger) RecordService {
	return &recordService{
		repos:    repos,
		tables:   slices.Clone(tables),
		notifier: notifier,
		log:      logging.OrNop(log).With("module", "records"),
		now:      time.Now,
	}
}

func (s *recordService) Tables() []string {
	return slices.Clone(s.tables)
}

func (s *recordService) checkTable(table string) error {
	if !slices.Contains(s.tables, table) {
		return fmt.Errorf("%w: unknown table %q", common.ErrValidation, table)
	}
	return nil
}

func (s *recordService) changed() {
	if s.notifier != nil {
		s.notifier.DataChanged()
	}
}

func (s *recordService) Create(ctx context.Context, table string, data map[string]any, opts CreateOptions) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Table:     table,
		ID:        uuid.NewString(),
		Data:      copyData(data),
		NeedsSync: true,
		Tracked:   true,
	}
	if opts.Temporary {
		rec.Code = models.NewTemporaryCode(table[:1], s.now())
	}

	if err := s.repos.Records.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.log.Debug(ctx, "record created", "table", table, "id", rec.ID, "temporary", opts.Temporary)
	s.changed()
	return rec, nil
}

func (s *recordService) Update(ctx context.Context, table, id string, data map[string]any) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	rec, err := s.repos.Records.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, common.ErrNotFound
	}

	rec.Data = copyData(data)
	rec.NeedsSync = true
	rec.Tracked = true
	if err := s.repos.Records.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.changed()
	return rec, nil
}

func (s *recordService) Delete(ctx context.Context, table, id string) error {
	if err := s.checkTable(table); err != nil {
		return err
	}

	var temporary bool
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx *client.Repositories) error {
		rec, err := tx.Records.Get(ctx, table, id)
		if err != nil {
			return err
		}
		temporary = rec.IsTemporary()

		if err := tx.Records.Delete(ctx, table, id); err != nil {
			return err
		}
		if temporary {
			return nil
		}
		return tx.DeleteQueue.Enqueue(ctx, table, id, s.now())
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete error: %w", err)
	}

	s.log.Debug(ctx, "record deleted", "table", table, "id", id, "queued", !temporary)
	s.changed()
	return nil
}

func (s *recordService) Get(ctx context.Context, table, id string) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	rec, err := s.repos.Records.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

// List returns the visible records of table. Soft-deleted rows are hidden.
func (s *recordService) List(ctx context.Context, table string) ([]*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	all, err := s.repos.Records.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, len(all))
	for _, r := range all {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordService) Requeue(ctx context.Context, table, id string) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	if err := s.repos.Records.Requeue(ctx, table, id); err != nil {
		return err
	}
	s.changed()
	return nil
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out[k] = v
	}
	return out
}
