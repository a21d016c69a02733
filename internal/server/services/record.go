package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/dbx"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/server/archive"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// RecordService is the remote store's view of the synchronized tables.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	archiver    archive.Archiver
	log         logging.Logger
	now         func() time.Time
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, a archive.Archiver, log logging.Logger) *RecordService {
	if a == nil {
		a = archive.NopArchiver{}
	}
	return &RecordService{
		db:          db,
		repomanager: m,
		archiver:    a,
		log:         logging.OrNop(log).With("module", "record_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecordService) Get(ctx context.Context, table, id string) (*models.Record, error) {
	if table == "" || id == "" {
		return nil, fmt.Errorf("%w: table and id are required", common.ErrValidation)
	}
	return s.repomanager.Records(s.db).Get(ctx, table, id)
}

// Insert creates a row on behalf of deviceID.
//
// A non-empty originID makes the call idempotent: when a row created from
// the same origin exists it is returned unchanged. The id is taken from
// payload["id"] when present, a new UUID otherwise. A code is drawn from the
// table's sequence unless payload["code"] carries a confirmed one.
func (s *RecordService) Insert(ctx context.Context, deviceID, table, originID string, payload map[string]any) (*models.Record, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: table is required", common.ErrValidation)
	}

	if originID != "" {
		existing, err := s.repomanager.Records(s.db).GetByOrigin(ctx, table, originID)
		if err == nil {
			s.log.Info(ctx, "insert replayed", "table", table, "origin_id", originID, "id", existing.ID)
			return existing, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	id := stringField(payload, "id")
	if id == "" {
		id = uuid.NewString()
	}
	code := stringField(payload, "code")
	if strings.Contains(code, common.TemporaryCodeMarker) {
		code = ""
	}
	now := s.now()

	rec := &models.Record{
		Table:     table,
		ID:        id,
		Code:      code,
		OriginID:  originID,
		Payload:   stripIdentity(payload),
		UpdatedBy: deviceID,
		CreatedAt: now,
	}

	out, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		if rec.Code == "" {
			n, err := s.repomanager.Sequences(tx).Next(ctx, table, now.Year())
			if err != nil {
				return nil, err
			}
			rec.Code = FormatCode(table, now.Year(), n)
		}
		return s.repomanager.Records(tx).Insert(ctx, rec)
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) && originID != "" {
			// a concurrent retry of the same create won the race
			if existing, gerr := s.repomanager.Records(s.db).GetByOrigin(ctx, table, originID); gerr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info(ctx, "record created", "table", table, "id", out.ID, "code", out.Code, "device_id", deviceID)
	return out, nil
}

// Update replaces the payload of an existing row.
func (s *RecordService) Update(ctx context.Context, deviceID, table, id string, payload map[string]any) (*models.Record, error) {
	if table == "" || id == "" {
		return nil, fmt.Errorf("%w: table and id are required", common.ErrValidation)
	}
	out, err := s.repomanager.Records(s.db).Update(ctx, table, id, stripIdentity(payload), deviceID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "record updated", "table", table, "id", id, "device_id", deviceID)
	return out, nil
}

// Delete removes a row and hands it to the archiver. An archive failure is
// logged; the row stays deleted.
func (s *RecordService) Delete(ctx context.Context, deviceID, table, id string) error {
	if table == "" || id == "" {
		return fmt.Errorf("%w: table and id are required", common.ErrValidation)
	}
	removed, err := s.repomanager.Records(s.db).Delete(ctx, table, id)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "record deleted", "table", table, "id", id, "device_id", deviceID)

	if err := s.archiver.Archive(ctx, removed, deviceID, s.now()); err != nil {
		s.log.Error(ctx, "failed to archive deleted record", "table", table, "id", id, "err", err)
	}
	return nil
}

// FormatCode renders a canonical code such as "C2025-0042". The prefix is the
// upper-cased first letter of the table name.
func FormatCode(table string, year int, n int64) string {
	r, _ := utf8.DecodeRuneInString(table)
	return fmt.Sprintf("%c%04d-%04d", unicode.ToUpper(r), year, n)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stripIdentity(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "id" || k == "code" {
			continue
		}
		out[k] = v
	}
	return out
}
