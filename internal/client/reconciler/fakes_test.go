package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/common"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeLocal struct {
	mu   sync.Mutex
	rows map[string]*models.Record
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{rows: make(map[string]*models.Record)}
}

func key(table, id string) string { return table + "/" + id }

// put stores rec as a local edit.
func (f *fakeLocal) put(rec *models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := rec.Clone()
	c.Tracked = true
	if old, ok := f.rows[key(c.Table, c.ID)]; ok {
		c.Revision = old.Revision + 1
	} else {
		c.Revision = 1
	}
	c.Attempts = 0
	c.NextAttemptAt = nil
	f.rows[key(c.Table, c.ID)] = c
}

func (f *fakeLocal) get(table, id string) (*models.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key(table, id)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (f *fakeLocal) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Table == table {
			n++
		}
	}
	return n
}

func (f *fakeLocal) GetAll(_ context.Context, table string) ([]*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Record
	for _, r := range f.rows {
		if r.Table == table {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLocal) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, key(table, id))
	return nil
}

func (f *fakeLocal) Promote(_ context.Context, table, oldID string, revision int64, rec *models.Record, at time.Time) (models.PromoteOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.rows[key(table, oldID)]
	if !ok || old.Deleted {
		delete(f.rows, key(table, oldID))
		return models.PromoteGone, nil
	}
	delete(f.rows, key(table, oldID))
	if old.Revision != revision {
		old.ID = rec.ID
		old.Code = rec.Code
		old.NeedsSync = true
		old.SyncedAt = &at
		old.Revision++
		old.Attempts = 0
		old.NextAttemptAt = nil
		old.LastError = ""
		f.rows[key(table, old.ID)] = old
		return models.PromoteEdited, nil
	}
	c := rec.Clone()
	c.Table = table
	c.Tracked = true
	c.NeedsSync = false
	c.SyncedAt = &at
	c.Revision = 1
	f.rows[key(table, c.ID)] = c
	return models.PromoteApplied, nil
}

func (f *fakeLocal) MarkSynced(_ context.Context, table, id string, revision int64, code string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key(table, id)]
	if !ok || r.Revision != revision {
		return false, nil
	}
	r.NeedsSync = false
	r.SyncedAt = &at
	r.Attempts = 0
	r.NextAttemptAt = nil
	if code != "" {
		r.Code = code
	}
	return true, nil
}

func (f *fakeLocal) RecordFailure(_ context.Context, table, id string, revision int64, attempts int, next time.Time, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key(table, id)]
	if !ok || r.Revision != revision {
		return nil
	}
	r.Attempts = attempts
	r.NextAttemptAt = &next
	r.LastError = msg
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	nextID  int64
	entries []models.DeleteQueueEntry
}

func (q *fakeQueue) enqueue(table, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.entries = append(q.entries, models.DeleteQueueEntry{ID: q.nextID, Table: table, RecordID: id, Operation: models.OperationDelete})
}

func (q *fakeQueue) Enqueue(_ context.Context, table, id string, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Table == table && e.RecordID == id {
			return nil
		}
	}
	q.nextID++
	q.entries = append(q.entries, models.DeleteQueueEntry{ID: q.nextID, Table: table, RecordID: id, Operation: models.OperationDelete})
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *fakeQueue) GetAll(_ context.Context, table string) ([]models.DeleteQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.DeleteQueueEntry
	for _, e := range q.entries {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *fakeQueue) Has(_ context.Context, table, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Table == table && e.RecordID == id {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueue) Delete(_ context.Context, entryID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ID == entryID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

type sentPayload struct {
	call    string
	payload map[string]any
}

type fakeRemote struct {
	mu     sync.Mutex
	rows   map[string]*models.Record
	calls  []string
	seq    int
	origin map[string]string

	// hooks run before the default behaviour; a non-nil error is returned
	// to the caller.
	onInsert func(table, originID string, payload map[string]any) error
	onUpdate func(table, id string) error
	onGet    func(table, id string) error
	onDelete func(table, id string) error

	// sent holds every payload passed to Insert or Update, keyed by call.
	sent []sentPayload

	// nextID and nextCode, when set, are assigned to the next created row.
	nextID, nextCode string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]*models.Record), origin: make(map[string]string)}
}

func (r *fakeRemote) seed(rec *models.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key(rec.Table, rec.ID)] = rec.Clone()
}

func (r *fakeRemote) has(table, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key(table, id)]
	return ok
}

func (r *fakeRemote) log(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// record keeps a copy of payload; the caller holds r.mu.
func (r *fakeRemote) record(call string, payload map[string]any) {
	c := make(map[string]any, len(payload))
	for k, v := range payload {
		c[k] = v
	}
	r.sent = append(r.sent, sentPayload{call: call, payload: c})
}

// Payload returns the payload of the first call matching call.
func (r *fakeRemote) Payload(call string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sent {
		if s.call == call {
			return s.payload, true
		}
	}
	return nil, false
}

func (r *fakeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Writes returns the calls that modify remote state.
func (r *fakeRemote) Writes() []string {
	var out []string
	for _, c := range r.Calls() {
		if len(c) >= 3 && c[:3] != "get" {
			out = append(out, c)
		}
	}
	return out
}

func (r *fakeRemote) Get(_ context.Context, table, id string) (*models.Record, error) {
	r.log("get " + table + " " + id)
	if r.onGet != nil {
		if err := r.onGet(table, id); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[key(table, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeRemote) Insert(_ context.Context, table, originID string, payload map[string]any) (*models.Record, error) {
	r.log("insert " + table + " " + originID)
	if r.onInsert != nil {
		if err := r.onInsert(table, originID, payload); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("insert "+table+" "+originID, payload)
	if id, ok := r.origin[key(table, originID)]; ok {
		return r.rows[key(table, id)].Clone(), nil
	}
	id, _ := payload["id"].(string)
	if id == "" {
		r.seq++
		id = fmt.Sprintf("srv-%d", r.seq)
	}
	code := fmt.Sprintf("X2025-%04d", len(r.rows)+1)
	if r.nextID != "" {
		id, code = r.nextID, r.nextCode
		r.nextID, r.nextCode = "", ""
	}
	rec := &models.Record{Table: table, ID: id, Code: code, Data: payload}
	r.rows[key(table, id)] = rec
	r.origin[key(table, originID)] = id
	return rec.Clone(), nil
}

func (r *fakeRemote) Update(_ context.Context, table, id string, payload map[string]any) (*models.Record, error) {
	r.log("update " + table + " " + id)
	if r.onUpdate != nil {
		if err := r.onUpdate(table, id); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("update "+table+" "+id, payload)
	rec, ok := r.rows[key(table, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	rec.Data = payload
	return rec.Clone(), nil
}

func (r *fakeRemote) Delete(_ context.Context, table, id string) error {
	r.log("delete " + table + " " + id)
	if r.onDelete != nil {
		if err := r.onDelete(table, id); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[key(table, id)]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, key(table, id))
	return nil
}
