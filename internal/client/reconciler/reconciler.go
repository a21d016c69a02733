// Package reconciler runs sync passes for single tables.
//
// A pass has three phases that always run in this order:
//
//	A. promote temporary records: create them remotely, then replace the
//	   local row with the canonical one in a single transaction
//	B. upsert dirty records, honouring queued deletes (delete wins) and
//	   treating a previously confirmed record that is missing remotely as
//	   deleted there (no resurrection)
//	C. send queued deletes
//
// Reconcile never returns an error. Every failure is logged and handled per
// item so one bad record does not block its table.
package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"golang.org/x/sync/semaphore"
)

// LocalStore is the part of the local record store a pass needs.
type LocalStore interface {
	GetAll(ctx context.Context, table string) ([]*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	Promote(ctx context.Context, table, oldID string, revision int64, rec *models.Record, at time.Time) (models.PromoteOutcome, error)
	MarkSynced(ctx context.Context, table, id string, revision int64, code string, at time.Time) (bool, error)
	RecordFailure(ctx context.Context, table, id string, revision int64, attempts int, next time.Time, msg string) error
}

type DeleteQueue interface {
	Enqueue(ctx context.Context, table, recordID string, at time.Time) error
	GetAll(ctx context.Context, table string) ([]models.DeleteQueueEntry, error)
	Has(ctx context.Context, table, recordID string) (bool, error)
	Delete(ctx context.Context, entryID int64) error
}

// RemoteStore is the store of record. Get, Update and Delete return
// common.ErrNotFound for a missing record.
type RemoteStore interface {
	Get(ctx context.Context, table, id string) (*models.Record, error)
	Insert(ctx context.Context, table, originID string, payload map[string]any) (*models.Record, error)
	Update(ctx context.Context, table, id string, payload map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
}

type Normalizer interface {
	Normalize(table string, data map[string]any) map[string]any
}

type Options struct {
	// RetryBase and RetryCap bound the exponential delay after a rejection.
	RetryBase time.Duration
	RetryCap  time.Duration
	// MaxAttempts rejections in a row quarantine a record. Zero disables it.
	MaxAttempts int
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		RetryBase:   30 * time.Second,
		RetryCap:    time.Hour,
		MaxAttempts: 8,
		Now:         time.Now,
	}
}

type Reconciler struct {
	local  LocalStore
	queue  DeleteQueue
	remote RemoteStore
	policy Normalizer
	log    logging.Logger
	opts   Options

	mu       sync.Mutex
	sessions map[string]*semaphore.Weighted
	skipped  atomic.Uint64
}

func New(local LocalStore, queue DeleteQueue, remote RemoteStore, policy Normalizer, log logging.Logger, opts Options) *Reconciler {
	def := DefaultOptions()
	if opts.RetryBase <= 0 {
		opts.RetryBase = def.RetryBase
	}
	if opts.RetryCap <= 0 {
		opts.RetryCap = def.RetryCap
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Reconciler{
		local:    local,
		queue:    queue,
		remote:   remote,
		policy:   policy,
		log:      logging.OrNop(log).With("module", "reconciler"),
		opts:     opts,
		sessions: make(map[string]*semaphore.Weighted),
	}
}

// session returns the lock guarding passes over table.
func (r *Reconciler) session(table string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[table]
	if !ok {
		s = semaphore.NewWeighted(1)
		r.sessions[table] = s
	}
	return s
}

// Skipped is the number of passes refused because another pass over the
// same table was running.
func (r *Reconciler) Skipped() uint64 {
	return r.skipped.Load()
}

// Reconcile runs one pass over table. If a pass over table is already in
// progress it returns immediately with Skipped set. A cancelled ctx stops the
// pass between items; the remaining items stay pending.
func (r *Reconciler) Reconcile(ctx context.Context, table string) Result {
	res := Result{Table: table}

	s := r.session(table)
	if !s.TryAcquire(1) {
		r.skipped.Add(1)
		res.Skipped = true
		r.log.Debug(ctx, "pass already running, skipping", "table", table)
		return res
	}
	defer s.Release(1)

	started := r.opts.Now()
	p := &pass{Reconciler: r, table: table, res: &res}

	for _, phase := range []func(context.Context) bool{p.promoteTemporary, p.upsertDirty, p.propagateDeletes} {
		if !phase(ctx) {
			res.Interrupted = true
			break
		}
	}

	res.Duration = r.opts.Now().Sub(started)
	if res.Changed() || res.Failed > 0 || res.Interrupted {
		r.log.Info(ctx, "sync pass finished", res.logArgs()...)
	}
	return res
}
