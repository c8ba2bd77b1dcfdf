package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/repository"
)

const (
	defaultPage      = 1
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// DeviceDirectory is the persistence surface for device management and
// listing. It is wider than the orchestrator's DeviceStore because it also
// covers registration and profile updates.
type DeviceDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) error
	Update(ctx context.Context, id string, updates map[string]interface{}) (*models.Device, error)
	List(ctx context.Context, params repository.DeviceListParams) ([]models.Device, int64, error)
}

// PaginatedDevices is one page of the fleet listing.
type PaginatedDevices struct {
	Data       []models.Device `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// DeviceUpdate carries the mutable profile fields of a device. Nil fields
// are left untouched.
type DeviceUpdate struct {
	DeviceName *string
	Location   *string
	IsActive   *bool
}

type DeviceService struct {
	devices DeviceDirectory
}

func NewDeviceService(devices DeviceDirectory) *DeviceService {
	return &DeviceService{devices: devices}
}

// ListDevices returns one page of the fleet with optional status and search
// filters, ordered by last update, newest first.
func (s *DeviceService) ListDevices(ctx context.Context, params repository.DeviceListParams) (*PaginatedDevices, error) {
	if params.Page <= 0 {
		params.Page = defaultPage
	}
	if params.Limit <= 0 {
		params.Limit = defaultPageLimit
	}
	if params.Limit > maxPageLimit {
		params.Limit = maxPageLimit
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, params.Status)
	}

	devices, total, err := s.devices.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return &PaginatedDevices{
		Data:       devices,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetDeviceByDeviceID resolves a device by its external identifier.
func (s *DeviceService) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// RegisterDevice creates a new device owned by the given user. The external
// device id must be unique; a new device starts in PENDING with no sync
// performed yet.
func (s *DeviceService) RegisterDevice(ctx context.Context, deviceID, deviceName string, location *string, userID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	if _, err := s.devices.GetByDeviceID(ctx, deviceID); err == nil {
		return nil, fmt.Errorf("%w: device %s already exists", ErrConflict, deviceID)
	} else if !errors.Is(err, repository.ErrDeviceNotFound) {
		return nil, fmt.Errorf("failed to check device: %w", err)
	}

	now := time.Now()
	device := &models.Device{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Location:   location,
		SyncStatus: models.DeviceStatePending,
		IsActive:   true,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	log.Printf("Device registered: %s (user %s)", deviceID, userID)
	return device, nil
}

// UpdateDevice applies a profile update to a device by internal id.
func (s *DeviceService) UpdateDevice(ctx context.Context, id string, update DeviceUpdate) (*models.Device, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}

	updates := map[string]interface{}{}
	if update.DeviceName != nil {
		updates["device_name"] = *update.DeviceName
	}
	if update.Location != nil {
		updates["location"] = *update.Location
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	device, err := s.devices.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update device: %w", err)
	}

	log.Printf("Device updated: %s", device.DeviceID)
	return device, nil
}
