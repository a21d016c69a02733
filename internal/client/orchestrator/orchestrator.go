// Package orchestrator fans a sync pass out over every configured table.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/reconciler"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrTableFailed wraps the failure of a single table in the error returned by
// ReconcileAll.
var ErrTableFailed = errors.New("table sync failed")

// TableReconciler runs one pass over one table.
type TableReconciler interface {
	Reconcile(ctx context.Context, table string) reconciler.Result
}

// Summary collects the per-table results of ReconcileAll.
type Summary struct {
	Results  []reconciler.Result
	Duration time.Duration
}

func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		n += r.Failed
	}
	return n
}

func (s Summary) Changed() bool {
	for _, r := range s.Results {
		if r.Changed() {
			return true
		}
	}
	return false
}

type Orchestrator struct {
	reconciler  TableReconciler
	tables      []string
	maxParallel int
	log         logging.Logger
}

// New creates an orchestrator for tables. maxParallel bounds the number of
// tables reconciled at once; zero or less means no bound.
func New(r TableReconciler, tables []string, maxParallel int, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		reconciler:  r,
		tables:      append([]string(nil), tables...),
		maxParallel: maxParallel,
		log:         logging.OrNop(log).With("module", "orchestrator"),
	}
}

func (o *Orchestrator) Tables() []string {
	return append([]string(nil), o.tables...)
}

// ReconcileAll reconciles every table and waits for all of them. A failing
// or panicking table never stops its siblings. The returned error lists the
// tables that had failures and is informational only; Summary is always
// complete.
func (o *Orchestrator) ReconcileAll(ctx context.Context) (Summary, error) {
	started := time.Now()

	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}

	var (
		mu      sync.Mutex
		results = make([]reconciler.Result, len(o.tables))
		errs    error
	)

	for i, table := range o.tables {
		g.Go(func() error {
			res, err := o.reconcileOne(ctx, table)
			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if err != nil {
				errs = multierr.Append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Summary{Results: results, Duration: time.Since(started)}, errs
}

func (o *Orchestrator) reconcileOne(ctx context.Context, table string) (res reconciler.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			o.log.Error(ctx, "sync pass panicked", "table", table, "panic", p)
			res = reconciler.Result{Table: table, Failed: 1}
			err = fmt.Errorf("%w: %s: panic: %v", ErrTableFailed, table, p)
		}
	}()

	res = o.reconciler.Reconcile(ctx, table)
	if res.Failed > 0 {
		err = fmt.Errorf("%w: %s: %d item(s) failed", ErrTableFailed, table, res.Failed)
	}
	return res, err
}
