package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/client/scheduler"
	"github.com/dmitrijs2005/agencysync/internal/client/services"
)

// syncController is the part of the scheduler used by the commands.
type syncController interface {
	TriggerManual(ctx context.Context) scheduler.Outcome
	Stats() models.SyncStats
	IsOnline() bool
	Cache() models.ConnectivityCache
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) Tables(ctx context.Context) error {
	for _, t := range a.records.Tables() {
		a.printf("%s\n", t)
	}
	return nil
}

func (a *App) List(ctx context.Context, table string) error {
	recs, err := a.records.List(ctx, table)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		a.printf("no records in %s\n", table)
		return nil
	}
	for _, r := range recs {
		a.printf("%s  %-12s  %-14s  %s\n", r.ID, displayCode(r), a.recordState(r), compactJSON(r.Data))
	}
	return nil
}

func (a *App) Show(ctx context.Context, table, id string) error {
	r, err := a.records.Get(ctx, table, id)
	if err != nil {
		return err
	}

	a.printf("table:      %s\n", r.Table)
	a.printf("id:         %s\n", r.ID)
	a.printf("code:       %s\n", displayCode(r))
	a.printf("state:      %s\n", a.recordState(r))
	if r.SyncedAt != nil {
		a.printf("synced at:  %s\n", r.SyncedAt.Local().Format(time.DateTime))
	}
	if r.Attempts > 0 {
		a.printf("attempts:   %d\n", r.Attempts)
		if r.NextAttemptAt != nil {
			a.printf("next try:   %s\n", r.NextAttemptAt.Local().Format(time.DateTime))
		}
		a.printf("last error: %s\n", r.LastError)
	}

	b, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s\n", b)
	return nil
}

func (a *App) Add(ctx context.Context, table, fields string, temporary bool) error {
	data, err := parseFields(fields)
	if err != nil {
		return err
	}
	r, err := a.records.Create(ctx, table, data, services.CreateOptions{Temporary: temporary})
	if err != nil {
		return err
	}
	a.printf("created %s %s\n", r.ID, displayCode(r))
	return nil
}

func (a *App) Edit(ctx context.Context, table, id, fields string) error {
	data, err := parseFields(fields)
	if err != nil {
		return err
	}
	if _, err := a.records.Update(ctx, table, id, data); err != nil {
		return err
	}
	a.printf("updated %s\n", id)
	return nil
}

func (a *App) Delete(ctx context.Context, table, id string) error {
	if err := a.records.Delete(ctx, table, id); err != nil {
		return err
	}
	a.printf("deleted %s\n", id)
	return nil
}

func (a *App) Retry(ctx context.Context, table, id string) error {
	if err := a.records.Requeue(ctx, table, id); err != nil {
		return err
	}
	a.printf("%s queued for retry\n", id)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	out := a.sync.TriggerManual(ctx)
	switch out.Status {
	case scheduler.StatusSynced:
		if out.Failed > 0 {
			a.printf("sync finished, %d table(s) failed\n", out.Failed)
		} else {
			a.printf("sync finished\n")
		}
	default:
		a.printf("sync skipped: %s\n", out.Reason)
	}
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st := a.sync.Stats()
	a.printf("checks:    %d\n", st.Checks)
	a.printf("syncs:     %d\n", st.Syncs)
	a.printf("skipped:   %d\n", st.Skipped)
	a.printf("failed:    %d\n", st.Failed)
	a.printf("scans:     %d\n", st.Scans)
	a.printf("skip rate: %.1f%%\n", st.SkipRate()*100)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	a.printf("device:    %s\n", a.deviceID)
	if a.sync.IsOnline() {
		a.printf("remote:    online\n")
	} else {
		a.printf("remote:    offline\n")
	}

	cache := a.sync.Cache()
	switch {
	case cache.CheckedAt.IsZero():
		a.printf("pending:   unknown\n")
	case cache.HasPending:
		a.printf("pending:   yes (checked %s)\n", cache.CheckedAt.Local().Format(time.TimeOnly))
	default:
		a.printf("pending:   no (checked %s)\n", cache.CheckedAt.Local().Format(time.TimeOnly))
	}

	last, err := a.device.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	if last.IsZero() {
		a.printf("last sync: never\n")
	} else {
		a.printf("last sync: %s\n", last.Local().Format(time.DateTime))
	}
	return nil
}

func (a *App) recordState(r *models.Record) string {
	switch {
	case r.IsQuarantined(a.maxAttempts):
		return fmt.Sprintf("quarantined(%d)", r.Attempts)
	case r.IsTemporary():
		return "temporary"
	case r.IsDirty() && r.Attempts > 0:
		return fmt.Sprintf("retrying(%d)", r.Attempts)
	case r.IsDirty():
		return "pending"
	case !r.Tracked:
		return "local"
	default:
		return "synced"
	}
}

func displayCode(r *models.Record) string {
	if r.Code == "" {
		return "-"
	}
	return r.Code
}

func compactJSON(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{?}"
	}
	s := string(b)
	const max = 80
	if len(s) > max {
		s = s[:max-3] + "..."
	}
	return strings.TrimSpace(s)
}
