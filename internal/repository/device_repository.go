package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pisync/server/internal/models"
	"gorm.io/gorm"
)

var ErrDeviceNotFound = errors.New("device not found")

// DeviceListParams filters and paginates the fleet listing.
type DeviceListParams struct {
	Page   int
	Limit  int
	Status models.DeviceSyncState
	Search string
}

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// GetByID retrieves a device by its internal id
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	result := r.db.WithContext(ctx).First(&device, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", result.Error)
	}
	return &device, nil
}

// GetByDeviceID retrieves a device by its external device identifier
func (r *DeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	result := r.db.WithContext(ctx).First(&device, "device_id = ?", deviceID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", result.Error)
	}
	return &device, nil
}

// GetByDeviceIDForUser retrieves a device by external id scoped to its owner.
// A device owned by someone else is reported exactly like a missing one.
func (r *DeviceRepository) GetByDeviceIDForUser(ctx context.Context, deviceID, userID string) (*models.Device, error) {
	var device models.Device
	result := r.db.WithContext(ctx).
		Where("device_id = ? AND user_id = ?", deviceID, userID).
		First(&device)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", result.Error)
	}
	return &device, nil
}

// Create persists a new device
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	result := r.db.WithContext(ctx).Create(device)
	if result.Error != nil {
		return fmt.Errorf("failed to create device: %w", result.Error)
	}
	return nil
}

// Update applies a partial update to a device and returns the fresh row
func (r *DeviceRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*models.Device, error) {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrDeviceNotFound
	}
	return r.GetByID(ctx, id)
}

// TransitionToPending atomically flips a device into PENDING. The status
// check and the write are a single conditional UPDATE so two concurrent
// triggers for the same device cannot both pass the guard: without force the
// statement matches only when the row is not already PENDING. Returns false
// when a sync is already in flight (and force was not set).
func (r *DeviceRepository) TransitionToPending(ctx context.Context, id string, force bool) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ? AND (sync_status <> ? OR ?)", id, models.DeviceStatePending, force).
		Updates(map[string]interface{}{
			"sync_status": models.DeviceStatePending,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition device to pending: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetSyncStatus records the terminal state of an attempt on the device.
// lastSyncTime is only written when provided; it is never cleared.
func (r *DeviceRepository) SetSyncStatus(ctx context.Context, id string, status models.DeviceSyncState, lastSyncTime *time.Time) error {
	updates := map[string]interface{}{
		"sync_status": status,
		"updated_at":  time.Now(),
	}
	if lastSyncTime != nil {
		updates["last_sync_time"] = *lastSyncTime
	}

	result := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update device sync status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// List returns one page of devices plus the total match count. Each device
// carries its sync logs from the trailing seven days.
func (r *DeviceRepository) List(ctx context.Context, params DeviceListParams) ([]models.Device, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Device{})

	if params.Status != "" {
		query = query.Where("sync_status = ?", params.Status)
	}
	if params.Search != "" {
		pattern := "%" + strings.TrimSpace(params.Search) + "%"
		query = query.Where("device_id ILIKE ? OR device_name ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	recentLogsSince := time.Now().AddDate(0, 0, -7)
	var devices []models.Device
	result := query.
		Preload("SyncLogs", "created_at >= ?", recentLogsSince).
		Order("updated_at DESC").
		Offset((params.Page - 1) * params.Limit).
		Limit(params.Limit).
		Find(&devices)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", result.Error)
	}
	return devices, total, nil
}

// ListByStatus returns all devices currently in the given state, most
// recently synced first. Devices that never synced sort last.
func (r *DeviceRepository) ListByStatus(ctx context.Context, status models.DeviceSyncState) ([]models.Device, error) {
	var devices []models.Device
	result := r.db.WithContext(ctx).
		Where("sync_status = ?", status).
		Order("last_sync_time DESC NULLS LAST").
		Find(&devices)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list devices by status: %w", result.Error)
	}
	return devices, nil
}

// CountAll returns the total number of registered devices
func (r *DeviceRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Device{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}
