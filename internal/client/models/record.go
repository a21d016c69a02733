package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
)

// Record is a domain row as stored in the local store. Data carries the
// business fields; the remaining fields are sync metadata owned by the engine.
type Record struct {
	Table string
	ID    string
	// Code is the human-facing identifier, normally issued by the remote store.
	Code string
	Data map[string]any

	NeedsSync bool
	SyncedAt  *time.Time
	Deleted   bool

	// Tracked is false for rows that lack sync metadata. Such rows are never
	// selected by any predicate.
	Tracked bool

	// Revision grows on every local write and guards MarkSynced against
	// overwriting an edit made while an upload was in flight.
	Revision int64

	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
}

// IsTemporary reports whether r was created offline and still carries an
// unconfirmed code.
func (r *Record) IsTemporary() bool {
	return r.Tracked && strings.Contains(r.Code, common.TemporaryCodeMarker)
}

// IsDirty reports whether r is a regular record waiting for an upsert.
func (r *Record) IsDirty() bool {
	return r.Tracked && r.NeedsSync && !r.IsTemporary() && !r.Deleted
}

// IsQuarantined reports whether r has failed maxAttempts times in a row.
// A non-positive maxAttempts disables quarantine.
func (r *Record) IsQuarantined(maxAttempts int) bool {
	return maxAttempts > 0 && r.Attempts >= maxAttempts
}

// IsDue reports whether the backoff window of r has elapsed.
func (r *Record) IsDue(now time.Time) bool {
	return r.NextAttemptAt == nil || !now.Before(*r.NextAttemptAt)
}

// NeedsWork reports whether a pass at now would act on r.
func (r *Record) NeedsWork(now time.Time, maxAttempts int) bool {
	if !r.IsTemporary() && !r.IsDirty() {
		return false
	}
	return !r.IsQuarantined(maxAttempts) && r.IsDue(now)
}

// Clone returns a copy of r whose Data map and time pointers are not shared.
func (r *Record) Clone() *Record {
	c := *r
	if r.Data != nil {
		c.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = v
		}
	}
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		c.SyncedAt = &t
	}
	if r.NextAttemptAt != nil {
		t := *r.NextAttemptAt
		c.NextAttemptAt = &t
	}
	return &c
}

// NewTemporaryCode builds an unconfirmed code such as "T2025TBC" for a record
// created while the remote store is unreachable.
func NewTemporaryCode(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%s", strings.ToUpper(prefix), now.Year(), common.TemporaryCodeMarker)
}

// PromoteOutcome tells what Promote did with the local row it was asked to
// replace.
type PromoteOutcome int

const (
	// PromoteApplied: the row was unchanged and now holds the canonical record.
	PromoteApplied PromoteOutcome = iota
	// PromoteEdited: the row was edited while its create was in flight. It was
	// re-keyed to the canonical id and code, keeps the edit and stays dirty.
	PromoteEdited
	// PromoteGone: the row was deleted while its create was in flight. Nothing
	// was stored and the remote copy is orphaned.
	PromoteGone
)

func (o PromoteOutcome) String() string {
	switch o {
	case PromoteApplied:
		return "applied"
	case PromoteEdited:
		return "edited"
	case PromoteGone:
		return "gone"
	default:
		return fmt.Sprintf("PromoteOutcome(%d)", int(o))
	}
}
