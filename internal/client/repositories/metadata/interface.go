// Package metadata is a small key/value store for device-local settings such
// as the generated device id and the time of the last completed sync.
package metadata

import (
	"context"
	"time"
)

const (
	KeyDeviceID   = "device_id"
	KeyLastSyncAt = "last_sync_at"
)

type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)

	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, value time.Time) error
}
