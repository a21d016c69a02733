package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/records"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/sequences"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type key struct{ table, id string }

type fakeRecords struct {
	mu        sync.Mutex
	rows      map[key]*models.Record
	getErr    error
	insertErr error
}

func newFakeRecords() *fakeRecords { return &fakeRecords{rows: map[key]*models.Record{}} }

func (f *fakeRecords) Get(_ context.Context, table, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.rows[key{table, id}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecords) GetByOrigin(_ context.Context, table, originID string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for k, r := range f.rows {
		if k.table == table && r.OriginID == originID {
			return r, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRecords) Insert(_ context.Context, r *models.Record) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if _, ok := f.rows[key{r.Table, r.ID}]; ok {
		return nil, common.ErrAlreadyExists
	}
	cp := *r
	cp.UpdatedAt = r.CreatedAt
	f.rows[key{r.Table, r.ID}] = &cp
	return &cp, nil
}

func (f *fakeRecords) Update(_ context.Context, table, id string, payload map[string]any, by string, now time.Time) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key{table, id}]
	if !ok {
		return nil, common.ErrNotFound
	}
	r.Payload, r.UpdatedBy, r.UpdatedAt = payload, by, now
	return r, nil
}

func (f *fakeRecords) Delete(_ context.Context, table, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key{table, id}]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(f.rows, key{table, id})
	return r, nil
}

type fakeSequences struct {
	last map[string]int64
	err  error
}

func (f *fakeSequences) Next(_ context.Context, table string, _ int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.last[table]++
	return f.last[table], nil
}

type fakeDevices struct {
	rows      map[string]*models.Device
	getErr    error
	createErr error
}

func (f *fakeDevices) Get(_ context.Context, id string) (*models.Device, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return d, nil
}

func (f *fakeDevices) Create(_ context.Context, d *models.Device) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[d.ID]; ok {
		return common.ErrAlreadyExists
	}
	f.rows[d.ID] = d
	return nil
}

type fakeRepoManager struct {
	records   *fakeRecords
	sequences *fakeSequences
	devices   *fakeDevices
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		records:   newFakeRecords(),
		sequences: &fakeSequences{last: map[string]int64{}},
		devices:   &fakeDevices{rows: map[string]*models.Device{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository          { return m.records }
func (m *fakeRepoManager) Sequences(dbx.DBTX) sequences.Repository      { return m.sequences }
func (m *fakeRepoManager) Devices(dbx.DBTX) devices.Repository          { return m.devices }

type fakeArchiver struct {
	got []*models.Record
	by  string
	err error
}

func (a *fakeArchiver) Archive(_ context.Context, r *models.Record, by string, _ time.Time) error {
	a.got = append(a.got, r)
	a.by = by
	return a.err
}

var errBoom = errors.New("boom")
