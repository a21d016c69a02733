package scheduler

import (
	"context"
	"time"
)

type recordScanner interface {
	HasPending(ctx context.Context, table string, now time.Time, maxAttempts int) (bool, error)
}

type queueCounter interface {
	Count(ctx context.Context, table string) (int, error)
}

// TableScanner implements PendingScanner over the local store.
type TableScanner struct {
	records     recordScanner
	queue       queueCounter
	tables      []string
	maxAttempts int
	now         func() time.Time
}

func NewTableScanner(records recordScanner, queue queueCounter, tables []string, maxAttempts int, now func() time.Time) *TableScanner {
	if now == nil {
		now = time.Now
	}
	return &TableScanner{records: records, queue: queue, tables: tables, maxAttempts: maxAttempts, now: now}
}

// HasPending stops at the first table with work.
func (t *TableScanner) HasPending(ctx context.Context) (bool, error) {
	now := t.now()
	for _, table := range t.tables {
		n, err := t.queue.Count(ctx, table)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
		pending, err := t.records.HasPending(ctx, table, now, t.maxAttempts)
		if err != nil {
			return false, err
		}
		if pending {
			return true, nil
		}
	}
	return false, nil
}
