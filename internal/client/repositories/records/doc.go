// Package records persists synchronizable records in the local SQLite store.
//
// All tables of the application share one physical table keyed by
// (table_name, id). Business fields live in a JSON column; the sync metadata
// (needs_sync, synced_at, deleted, revision, attempts) is kept in dedicated
// columns so the engine can select work without decoding payloads. A row whose
// needs_sync column is NULL is untracked and never selected for sync.
package records
