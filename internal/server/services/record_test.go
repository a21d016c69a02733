package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordService(t *testing.T) (*RecordService, *fakeRepoManager, *fakeArchiver, func()) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	arch := &fakeArchiver{}
	s := NewRecordService(db, rm, arch, nil)
	s.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	expectTx := func() {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	return s, rm, arch, expectTx
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "C2025-0001", FormatCode("customers", 2025, 1))
	assert.Equal(t, "B2026-12345", FormatCode("bookings", 2026, 12345))
}

func TestInsert_AssignsIDAndCode(t *testing.T) {
	s, rm, _, expectTx := newRecordService(t)
	expectTx()

	got, err := s.Insert(context.Background(), "dev-1", "customers", "", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "C2025-0001", got.Code)
	assert.Equal(t, "dev-1", got.UpdatedBy)
	assert.Equal(t, map[string]any{"name": "Ann"}, got.Payload)
	assert.Len(t, rm.records.rows, 1)
}

func TestInsert_HonoursPayloadIDAndStripsIdentity(t *testing.T) {
	s, _, _, expectTx := newRecordService(t)
	expectTx()

	got, err := s.Insert(context.Background(), "dev-1", "tours", "local-1",
		map[string]any{"id": "local-1", "code": "T2025TBC", "name": "Alps"})
	require.NoError(t, err)
	assert.Equal(t, "local-1", got.ID)
	assert.Equal(t, "T2025-0001", got.Code)
	assert.Equal(t, map[string]any{"name": "Alps"}, got.Payload)
}

func TestInsert_KeepsConfirmedCode(t *testing.T) {
	s, rm, _, expectTx := newRecordService(t)
	expectTx()

	got, err := s.Insert(context.Background(), "dev-1", "invoices", "", map[string]any{"code": "INV-7"})
	require.NoError(t, err)
	assert.Equal(t, "INV-7", got.Code)
	assert.Empty(t, rm.sequences.last)
}

func TestInsert_ReplayByOrigin(t *testing.T) {
	s, rm, _, expectTx := newRecordService(t)
	expectTx()

	first, err := s.Insert(context.Background(), "dev-1", "bookings", "tmp-1", map[string]any{"pax": 2})
	require.NoError(t, err)

	again, err := s.Insert(context.Background(), "dev-1", "bookings", "tmp-1", map[string]any{"pax": 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Code, again.Code)
	assert.Len(t, rm.records.rows, 1)
	assert.Equal(t, int64(1), rm.sequences.last["bookings"])
}

func TestInsert_SequenceIncrements(t *testing.T) {
	s, _, _, expectTx := newRecordService(t)
	expectTx()
	expectTx()

	a, err := s.Insert(context.Background(), "dev-1", "suppliers", "", nil)
	require.NoError(t, err)
	b, err := s.Insert(context.Background(), "dev-1", "suppliers", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "S2025-0001", a.Code)
	assert.Equal(t, "S2025-0002", b.Code)
}

func TestInsert_DuplicateID(t *testing.T) {
	s, rm, _, _ := newRecordService(t)
	rm.records.rows[key{"tours", "t-1"}] = &models.Record{Table: "tours", ID: "t-1"}
	db, mock := newSQLMockDB(t)
	s.db = db
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Insert(context.Background(), "dev-1", "tours", "", map[string]any{"id": "t-1"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_SequenceErrorRollsBack(t *testing.T) {
	s, rm, _, _ := newRecordService(t)
	rm.sequences.err = errBoom
	db, mock := newSQLMockDB(t)
	s.db = db
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Insert(context.Background(), "dev-1", "tours", "", nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, rm.records.rows)
}

func TestInsert_Validation(t *testing.T) {
	s, _, _, _ := newRecordService(t)
	_, err := s.Insert(context.Background(), "dev-1", "", "", nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestInsert_OriginLookupError(t *testing.T) {
	s, rm, _, _ := newRecordService(t)
	rm.records.getErr = errBoom

	_, err := s.Insert(context.Background(), "dev-1", "tours", "tmp-1", nil)
	assert.ErrorIs(t, err, errBoom)
}

func TestGet(t *testing.T) {
	s, rm, _, _ := newRecordService(t)
	rm.records.rows[key{"tours", "t-1"}] = &models.Record{Table: "tours", ID: "t-1", Code: "T2025-0001"}

	got, err := s.Get(context.Background(), "tours", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "T2025-0001", got.Code)

	_, err = s.Get(context.Background(), "tours", "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Get(context.Background(), "tours", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdate(t *testing.T) {
	s, rm, _, _ := newRecordService(t)
	rm.records.rows[key{"tours", "t-1"}] = &models.Record{Table: "tours", ID: "t-1", Code: "T2025-0001"}

	got, err := s.Update(context.Background(), "dev-2", "tours", "t-1", map[string]any{"id": "x", "code": "y", "name": "Lakes"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Lakes"}, got.Payload)
	assert.Equal(t, "dev-2", got.UpdatedBy)
	assert.Equal(t, "T2025-0001", got.Code)

	_, err = s.Update(context.Background(), "dev-2", "tours", "missing", nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_Archives(t *testing.T) {
	s, rm, arch, _ := newRecordService(t)
	rm.records.rows[key{"invoices", "i-1"}] = &models.Record{Table: "invoices", ID: "i-1"}

	require.NoError(t, s.Delete(context.Background(), "dev-3", "invoices", "i-1"))
	assert.Empty(t, rm.records.rows)
	require.Len(t, arch.got, 1)
	assert.Equal(t, "i-1", arch.got[0].ID)
	assert.Equal(t, "dev-3", arch.by)
}

func TestDelete_ArchiveFailureStillDeletes(t *testing.T) {
	s, rm, arch, _ := newRecordService(t)
	arch.err = errBoom
	rm.records.rows[key{"invoices", "i-1"}] = &models.Record{Table: "invoices", ID: "i-1"}

	require.NoError(t, s.Delete(context.Background(), "dev-3", "invoices", "i-1"))
	assert.Empty(t, rm.records.rows)
}

func TestDelete_NotFound(t *testing.T) {
	s, _, arch, _ := newRecordService(t)

	err := s.Delete(context.Background(), "dev-3", "invoices", "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, arch.got)
}
