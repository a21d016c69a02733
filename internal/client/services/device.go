package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/client"
	"github.com/dmitrijs2005/agencysync/internal/client/repositories/metadata"
	"github.com/google/uuid"
)

// DeviceService keeps the identity of this device and its session with the
// remote store.
type DeviceService interface {
	// Authenticate opens a session with the remote store.
	Authenticate(ctx context.Context) error
	Ping(ctx context.Context) error
	// LastSyncAt returns the time of the last completed sync, or the zero time.
	LastSyncAt(ctx context.Context) (time.Time, error)
	SetLastSyncAt(ctx context.Context, at time.Time) error
	Close() error
}

type deviceService struct {
	client client.Client
	meta   metadata.Repository
}

func NewDeviceService(c client.Client, meta metadata.Repository) DeviceService {
	return &deviceService{client: c, meta: meta}
}

// EnsureDeviceID returns the persisted device id. When none is stored,
// configured is persisted, or a new uuid if configured is empty. It runs
// before the remote client exists, since the client is bound to the id.
func EnsureDeviceID(ctx context.Context, meta metadata.Repository, configured string) (string, error) {
	id, err := meta.GetString(ctx, metadata.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = configured
	if id == "" {
		id = uuid.NewString()
	}
	if err := meta.SetString(ctx, metadata.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

func (d *deviceService) Authenticate(ctx context.Context) error {
	if err := d.client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

func (d *deviceService) Ping(ctx context.Context) error {
	return d.client.Ping(ctx)
}

func (d *deviceService) LastSyncAt(ctx context.Context) (time.Time, error) {
	return d.meta.GetTime(ctx, metadata.KeyLastSyncAt)
}

func (d *deviceService) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return d.meta.SetTime(ctx, metadata.KeyLastSyncAt, at)
}

func (d *deviceService) Close() error {
	return d.client.Close()
}
