package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/common"
)

// pass is the state of one Reconcile call.
type pass struct {
	*Reconciler
	table string
	res   *Result
}

func (p *pass) load(ctx context.Context) ([]*models.Record, bool) {
	recs, err := p.local.GetAll(ctx, p.table)
	if err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to read local records", "table", p.table, "err", err)
		return nil, false
	}
	return recs, true
}

func (p *pass) eligible(rec *models.Record) bool {
	return rec.NeedsWork(p.opts.Now(), p.opts.MaxAttempts)
}

func (p *pass) payload(rec *models.Record) map[string]any {
	var out map[string]any
	if p.policy != nil {
		out = p.policy.Normalize(p.table, rec.Data)
	} else {
		out = make(map[string]any, len(rec.Data))
		for k, v := range rec.Data {
			out[k] = v
		}
	}
	delete(out, "id")
	delete(out, "code")
	return out
}

// purge removes a local row without any remote write.
func (p *pass) purge(ctx context.Context, rec *models.Record, reason string) {
	if err := p.local.Delete(ctx, p.table, rec.ID); err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to purge local record", "table", p.table, "id", rec.ID, "reason", reason, "err", err)
		return
	}
	p.res.Purged++
	p.log.Info(ctx, "purged local record", "table", p.table, "id", rec.ID, "reason", reason)
}

// queued reports whether a delete intent exists for rec. A failed lookup is
// reported as queued=false, ok=false and the record is skipped for this pass.
func (p *pass) queued(ctx context.Context, rec *models.Record) (queued, ok bool) {
	has, err := p.queue.Has(ctx, p.table, rec.ID)
	if err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to read delete queue", "table", p.table, "id", rec.ID, "err", err)
		return false, false
	}
	return has, true
}

// fail records a remote failure for rec. Rejections count towards the
// backoff and quarantine; transient errors do not.
func (p *pass) fail(ctx context.Context, rec *models.Record, op string, err error) {
	p.res.Failed++
	if isTransient(err) {
		p.log.Warn(ctx, "remote unavailable, will retry", "table", p.table, "id", rec.ID, "op", op, "err", err)
		return
	}

	attempts := rec.Attempts + 1
	next := p.opts.Now().Add(retryDelay(p.opts.RetryBase, p.opts.RetryCap, attempts))
	if ferr := p.local.RecordFailure(ctx, p.table, rec.ID, rec.Revision, attempts, next, err.Error()); ferr != nil {
		p.log.Error(ctx, "failed to store sync failure", "table", p.table, "id", rec.ID, "err", ferr)
	}

	if p.opts.MaxAttempts > 0 && attempts >= p.opts.MaxAttempts {
		p.log.Error(ctx, "record quarantined after repeated rejections",
			"table", p.table, "id", rec.ID, "op", op, "attempts", attempts, "err", err)
		return
	}
	p.log.Warn(ctx, "remote rejected record", "table", p.table, "id", rec.ID, "op", op,
		"attempts", attempts, "next_attempt_at", next, "err", err)
}

func (p *pass) markSynced(ctx context.Context, rec *models.Record, code string) {
	ok, err := p.local.MarkSynced(ctx, p.table, rec.ID, rec.Revision, code, p.opts.Now())
	if err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to mark record synced", "table", p.table, "id", rec.ID, "err", err)
		return
	}
	if !ok {
		p.log.Debug(ctx, "record changed during upload, keeping it dirty", "table", p.table, "id", rec.ID)
	}
}

// promote replaces the local row rec with the remote record created. It
// reports false when the local row is no longer there; the remote copy is
// then queued for deletion so phase C removes it.
func (p *pass) promote(ctx context.Context, rec, created *models.Record) bool {
	outcome, err := p.local.Promote(ctx, p.table, rec.ID, rec.Revision, created, p.opts.Now())
	if err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to store promoted record", "table", p.table,
			"id", rec.ID, "remote_id", created.ID, "err", err)
		return false
	}

	switch outcome {
	case models.PromoteGone:
		if err := p.queue.Enqueue(ctx, p.table, created.ID, p.opts.Now()); err != nil {
			p.res.Failed++
			p.log.Error(ctx, "failed to queue delete of orphaned remote record", "table", p.table,
				"id", rec.ID, "remote_id", created.ID, "err", err)
			return false
		}
		p.log.Info(ctx, "record deleted during upload, queued remote delete", "table", p.table,
			"id", rec.ID, "remote_id", created.ID)
		return false
	case models.PromoteEdited:
		p.log.Info(ctx, "record changed during upload, re-keyed and kept dirty", "table", p.table,
			"id", rec.ID, "remote_id", created.ID, "code", created.Code)
	default:
		p.log.Info(ctx, "promoted record", "table", p.table,
			"id", rec.ID, "remote_id", created.ID, "code", created.Code)
	}
	return true
}

// promoteTemporary is phase A.
func (p *pass) promoteTemporary(ctx context.Context) bool {
	recs, ok := p.load(ctx)
	if !ok {
		return true
	}

	for _, rec := range recs {
		if !rec.IsTemporary() || !p.eligible(rec) {
			continue
		}
		if ctx.Err() != nil {
			return false
		}

		if rec.Deleted {
			p.purge(ctx, rec, "temporary record deleted before upload")
			continue
		}
		queued, ok := p.queued(ctx, rec)
		if !ok {
			continue
		}
		if queued {
			p.purge(ctx, rec, "delete queued")
			continue
		}

		created, err := p.remote.Insert(ctx, p.table, rec.ID, p.payload(rec))
		if err == nil && (created == nil || created.ID == "") {
			err = fmt.Errorf("%w: create returned no id", common.ErrRejected)
		}
		if err != nil {
			p.fail(ctx, rec, "promote", err)
			continue
		}
		if created.Data == nil {
			created.Data = rec.Data
		}

		if p.promote(ctx, rec, created) {
			p.res.Promoted++
		}
	}
	return true
}

// upsertDirty is phase B.
func (p *pass) upsertDirty(ctx context.Context) bool {
	recs, ok := p.load(ctx)
	if !ok {
		return true
	}

	for _, rec := range recs {
		if !rec.IsDirty() || !p.eligible(rec) {
			continue
		}
		if ctx.Err() != nil {
			return false
		}
		p.upsert(ctx, rec)
	}
	return true
}

func (p *pass) upsert(ctx context.Context, rec *models.Record) {
	queued, ok := p.queued(ctx, rec)
	if !ok {
		return
	}
	if queued {
		p.purge(ctx, rec, "delete queued")
		return
	}

	payload := p.payload(rec)

	_, err := p.remote.Get(ctx, p.table, rec.ID)
	switch {
	case err == nil:
		updated, err := p.remote.Update(ctx, p.table, rec.ID, payload)
		if err != nil {
			p.fail(ctx, rec, "update", err)
			return
		}
		p.res.Updated++
		p.markSynced(ctx, rec, codeOf(updated))

	case errors.Is(err, common.ErrNotFound):
		if rec.SyncedAt != nil {
			p.purge(ctx, rec, "deleted remotely")
			return
		}
		payload["id"] = rec.ID
		created, err := p.remote.Insert(ctx, p.table, rec.ID, payload)
		if err != nil {
			p.fail(ctx, rec, "create", err)
			return
		}
		p.res.Created++
		if created != nil && created.ID != "" && created.ID != rec.ID {
			if created.Data == nil {
				created.Data = rec.Data
			}
			p.promote(ctx, rec, created)
			return
		}
		p.markSynced(ctx, rec, codeOf(created))

	default:
		p.fail(ctx, rec, "lookup", err)
	}
}

// propagateDeletes is phase C.
func (p *pass) propagateDeletes(ctx context.Context) bool {
	entries, err := p.queue.GetAll(ctx, p.table)
	if err != nil {
		p.res.Failed++
		p.log.Error(ctx, "failed to read delete queue", "table", p.table, "err", err)
		return true
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return false
		}

		err := p.remote.Delete(ctx, p.table, e.RecordID)
		switch {
		case err == nil || errors.Is(err, common.ErrNotFound):
			p.res.Deleted++
		case isTransient(err):
			p.res.Failed++
			p.log.Warn(ctx, "remote unavailable, keeping delete intent", "table", p.table, "id", e.RecordID, "err", err)
			continue
		default:
			p.res.Dropped++
			p.log.Error(ctx, "remote rejected delete, dropping intent", "table", p.table, "id", e.RecordID, "err", err)
		}

		if err := p.queue.Delete(ctx, e.ID); err != nil {
			p.res.Failed++
			p.log.Error(ctx, "failed to clear delete intent", "table", p.table, "id", e.RecordID, "err", err)
		}
		if err := p.local.Delete(ctx, p.table, e.RecordID); err != nil {
			p.res.Failed++
			p.log.Error(ctx, "failed to purge residual record", "table", p.table, "id", e.RecordID, "err", err)
		}
	}
	return true
}

func codeOf(rec *models.Record) string {
	if rec == nil {
		return ""
	}
	return rec.Code
}
