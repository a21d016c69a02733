package client

import (
	"context"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
)

// Client is the remote store as seen from a device.
type Client interface {
	Close() error
	Authenticate(ctx context.Context) error
	Ping(ctx context.Context) error

	Get(ctx context.Context, table, id string) (*models.Record, error)
	Insert(ctx context.Context, table, originID string, payload map[string]any) (*models.Record, error)
	Update(ctx context.Context, table, id string, payload map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
}
