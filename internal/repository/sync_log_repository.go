package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pisync/server/internal/models"
	"gorm.io/gorm"
)

var ErrSyncLogNotFound = errors.New("sync log not found")

type SyncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create persists a new sync log entry
func (r *SyncLogRepository) Create(ctx context.Context, log *models.SyncLog) error {
	result := r.db.WithContext(ctx).Create(log)
	if result.Error != nil {
		return fmt.Errorf("failed to create sync log: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a sync log by id
func (r *SyncLogRepository) GetByID(ctx context.Context, id string) (*models.SyncLog, error) {
	var log models.SyncLog
	result := r.db.WithContext(ctx).First(&log, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSyncLogNotFound
		}
		return nil, fmt.Errorf("failed to get sync log: %w", result.Error)
	}
	return &log, nil
}

// UpdateTerminal moves a PENDING log to its terminal outcome. The update is
// gated on the row still being PENDING, so a duplicate completion for the
// same log matches zero rows and reports false; the log never transitions
// out of a terminal outcome.
func (r *SyncLogRepository) UpdateTerminal(ctx context.Context, id string, outcome models.AttemptOutcome, errorMessage *string, data models.SyncData) (bool, error) {
	if !outcome.Terminal() {
		return false, fmt.Errorf("outcome %q is not terminal", outcome)
	}

	result := r.db.WithContext(ctx).Model(&models.SyncLog{}).
		Where("id = ? AND status = ?", id, models.OutcomePending).
		Updates(map[string]interface{}{
			"status":        outcome,
			"error_message": errorMessage,
			"sync_data":     data,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update sync log: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByDevice returns the most recent logs for a device, newest first
func (r *SyncLogRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	result := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", result.Error)
	}
	return logs, nil
}

// ListByStatusSince returns logs with the given outcome created at or after
// since, newest first, each joined with its owning device.
func (r *SyncLogRepository) ListByStatusSince(ctx context.Context, status models.AttemptOutcome, since time.Time, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	result := r.db.WithContext(ctx).
		Preload("Device").
		Where("status = ? AND created_at >= ?", status, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list sync logs by status: %w", result.Error)
	}
	return logs, nil
}

// ListStalePending returns PENDING logs created before the cutoff, oldest
// first. Used by the watchdog to reap attempts that never completed.
func (r *SyncLogRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OutcomePending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stale pending logs: %w", result.Error)
	}
	return logs, nil
}
