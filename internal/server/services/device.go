package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/cryptox"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/server/auth"
	"github.com/dmitrijs2005/agencysync/internal/server/config"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/dmitrijs2005/agencysync/internal/server/repositories/repomanager"
)

// DeviceService authenticates devices. When enrollment is allowed, the first
// Authenticate of an unknown device registers its secret.
type DeviceService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	allowEnrollment             bool
	log                         logging.Logger
}

func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *DeviceService {
	return &DeviceService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		allowEnrollment:             cfg.AllowEnrollment,
		log:                         logging.OrNop(log).With("module", "device_service"),
	}
}

// Authenticate verifies the device secret and returns a signed access token.
func (s *DeviceService) Authenticate(ctx context.Context, deviceID, secret string) (string, error) {
	if deviceID == "" || secret == "" {
		return "", fmt.Errorf("%w: device id and secret are required", common.ErrValidation)
	}

	repo := s.repomanager.Devices(s.db)
	device, err := repo.Get(ctx, deviceID)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotFound):
		if !s.allowEnrollment {
			return "", common.ErrUnauthorized
		}
		device, err = s.enroll(ctx, deviceID, secret)
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	if !cryptox.VerifySecret([]byte(secret), device.Salt, device.SecretHash) {
		s.log.Warn(ctx, "device secret mismatch", "device_id", deviceID)
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(deviceID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *DeviceService) enroll(ctx context.Context, deviceID, secret string) (*models.Device, error) {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	device := &models.Device{
		ID:         deviceID,
		Salt:       salt,
		SecretHash: cryptox.HashSecret([]byte(secret), salt),
		CreatedAt:  time.Now().UTC(),
	}

	repo := s.repomanager.Devices(s.db)
	if err := repo.Create(ctx, device); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			// enrolled concurrently; verify against what was stored
			return repo.Get(ctx, deviceID)
		}
		return nil, err
	}
	s.log.Info(ctx, "device enrolled", "device_id", deviceID)
	return device, nil
}
