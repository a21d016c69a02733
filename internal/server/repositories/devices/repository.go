// Package devices stores enrolled devices and their secret verifiers.
package devices

import (
	"context"

	"github.com/dmitrijs2005/agencysync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Device, error)
	Create(ctx context.Context, d *models.Device) error
}
