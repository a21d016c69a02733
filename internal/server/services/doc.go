// Package services contains the business logic of the remote store.
//
// RecordService owns record identity: it picks the canonical id, assigns the
// human-facing code from a per-table yearly sequence, and answers a retried
// create with the row made the first time. DeviceService enrolls devices and
// issues their access tokens.
package services
