package models

import "time"

// Operation is the kind of intent recorded in the delete queue.
type Operation string

const OperationDelete Operation = "delete"

// DeleteQueueEntry records that a record was deleted locally and the remote
// store has not been asked to delete it yet.
type DeleteQueueEntry struct {
	ID         int64
	Table      string
	RecordID   string
	Operation  Operation
	EnqueuedAt time.Time
}
