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
	"github.com/pisync/server/internal/worker"
)

const (
	defaultLogLimit      = 10
	maxLogLimit          = 500
	defaultErrorLogDays  = 7
	defaultErrorLogLimit = 50
)

// DeviceStore is the device persistence surface the orchestrator needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*models.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	GetByDeviceIDForUser(ctx context.Context, deviceID, userID string) (*models.Device, error)
	TransitionToPending(ctx context.Context, id string, force bool) (bool, error)
	SetSyncStatus(ctx context.Context, id string, status models.DeviceSyncState, lastSyncTime *time.Time) error
	ListByStatus(ctx context.Context, status models.DeviceSyncState) ([]models.Device, error)
}

// SyncLogStore is the sync log persistence surface the orchestrator needs.
type SyncLogStore interface {
	Create(ctx context.Context, syncLog *models.SyncLog) error
	GetByID(ctx context.Context, id string) (*models.SyncLog, error)
	UpdateTerminal(ctx context.Context, id string, outcome models.AttemptOutcome, errorMessage *string, data models.SyncData) (bool, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.SyncLog, error)
	ListByStatusSince(ctx context.Context, status models.AttemptOutcome, since time.Time, limit int) ([]models.SyncLog, error)
}

// Dispatcher schedules asynchronous sync attempts.
type Dispatcher interface {
	Dispatch(job worker.Job)
}

// TriggerResult is the synchronous answer to a trigger request. The real
// outcome arrives later through the completion path.
type TriggerResult struct {
	Accepted bool   `json:"success"`
	Message  string `json:"message"`
}

// SyncService is the orchestrator: it owns the device sync state machine,
// the trigger/completion protocol, and the guarantee that at most one sync
// is in flight per device. All sync state mutation goes through TriggerSync
// and HandleCompletion.
type SyncService struct {
	devices    DeviceStore
	syncLogs   SyncLogStore
	dispatcher Dispatcher
}

func NewSyncService(devices DeviceStore, syncLogs SyncLogStore, dispatcher Dispatcher) *SyncService {
	return &SyncService{
		devices:    devices,
		syncLogs:   syncLogs,
		dispatcher: dispatcher,
	}
}

// TriggerSync starts a sync attempt for the device with the given external
// id, scoped to the requesting user. When a sync is already in flight and
// force is not set, it answers "already in progress" without error and
// without creating a log. Otherwise the device is flipped to PENDING and a
// new PENDING log is created before the worker is dispatched; the call never
// waits for the attempt itself.
func (s *SyncService) TriggerSync(ctx context.Context, deviceID, userID string, force bool, syncType models.SyncType) (*TriggerResult, error) {
	if deviceID == "" || userID == "" {
		return nil, fmt.Errorf("%w: device id and user id are required", ErrValidation)
	}
	if syncType == "" {
		syncType = models.SyncTypeDelta
	}
	if !syncType.Valid() {
		return nil, fmt.Errorf("%w: unknown sync type %q", ErrValidation, syncType)
	}

	device, err := s.devices.GetByDeviceIDForUser(ctx, deviceID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to resolve device: %w", err)
	}

	// Guard and transition are one conditional UPDATE in the store, so two
	// concurrent triggers cannot both pass and create two in-flight logs.
	transitioned, err := s.devices.TransitionToPending(ctx, device.ID, force)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}
	if !transitioned {
		return &TriggerResult{
			Accepted: false,
			Message:  "Sync already in progress for this device",
		}, nil
	}

	triggeredAt := time.Now()
	syncLog := &models.SyncLog{
		ID:       uuid.NewString(),
		DeviceID: device.ID,
		Status:   models.OutcomePending,
		SyncData: models.SyncData{
			SyncType:    syncType,
			TriggeredAt: triggeredAt,
			ForcedSync:  force,
		},
		CreatedAt: triggeredAt,
	}
	if err := s.syncLogs.Create(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to record sync attempt: %w", err)
	}

	s.dispatcher.Dispatch(worker.Job{
		DeviceID:         device.ID,
		LogID:            syncLog.ID,
		ExternalDeviceID: device.DeviceID,
		SyncType:         string(syncType),
		Forced:           force,
		TriggeredAt:      triggeredAt,
	})

	log.Printf("Sync triggered for device %s (log %s, type %s, forced %v)", deviceID, syncLog.ID, syncType, force)
	return &TriggerResult{
		Accepted: true,
		Message:  fmt.Sprintf("Sync triggered for device %s", deviceID),
	}, nil
}

// HandleCompletion reconciles a worker result. It is idempotent per log id:
// the log update is gated on the log still being PENDING, and a duplicate
// delivery is a logged no-op. A missing device or log means the resource was
// removed between trigger and completion; the event is dropped, not raised.
func (s *SyncService) HandleCompletion(ctx context.Context, job worker.Job, result worker.Result) error {
	syncLog, err := s.syncLogs.GetByID(ctx, job.LogID)
	if err != nil {
		if errors.Is(err, repository.ErrSyncLogNotFound) {
			log.Printf("Dropping completion for device %s: sync log %s no longer exists", job.ExternalDeviceID, job.LogID)
			return nil
		}
		return fmt.Errorf("failed to load sync log: %w", err)
	}

	data := syncLog.SyncData
	durationMillis := result.Duration.Milliseconds()
	data.DurationMillis = &durationMillis

	var outcome models.AttemptOutcome
	var errorMessage *string
	if result.Success {
		outcome = models.OutcomeSuccess
		completedAt := result.FinishedAt
		data.CompletedAt = &completedAt
		data.BytesTransferred = &result.BytesTransferred
		data.FilesTransferred = &result.FilesTransferred
	} else {
		outcome = models.OutcomeFailed
		failedAt := result.FinishedAt
		data.FailedAt = &failedAt
		data.BytesTransferred = &result.BytesTransferred
		data.ErrorCode = &result.ErrorCode
		errorMessage = &result.ErrorMessage
	}

	updated, err := s.syncLogs.UpdateTerminal(ctx, job.LogID, outcome, errorMessage, data)
	if err != nil {
		return fmt.Errorf("failed to finalize sync log: %w", err)
	}
	if !updated {
		// Already terminal: duplicate delivery, nothing left to do.
		log.Printf("Ignoring duplicate completion for sync log %s", job.LogID)
		return nil
	}

	var lastSyncTime *time.Time
	deviceState := models.DeviceStateFailed
	if result.Success {
		deviceState = models.DeviceStateSuccess
		finished := result.FinishedAt
		lastSyncTime = &finished
	}

	if err := s.devices.SetSyncStatus(ctx, job.DeviceID, deviceState, lastSyncTime); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			log.Printf("Dropping device update for sync log %s: device %s no longer exists", job.LogID, job.ExternalDeviceID)
			return nil
		}
		return fmt.Errorf("failed to update device status: %w", err)
	}

	log.Printf("Sync completed for device %s with status %s", job.ExternalDeviceID, outcome)
	return nil
}

// ListSyncLogs returns the most recent logs for a device's external id,
// newest first. The limit defaults to 10 and is capped at 500.
func (s *SyncService) ListSyncLogs(ctx context.Context, deviceID string, limit int) ([]models.SyncLog, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to resolve device: %w", err)
	}

	logs, err := s.syncLogs.ListByDevice(ctx, device.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return logs, nil
}

// ListErrorLogs returns failed attempts from the trailing window, newest
// first, each joined with its owning device. days defaults to 7 and limit
// to 50.
func (s *SyncService) ListErrorLogs(ctx context.Context, days, limit int) ([]models.SyncLog, error) {
	if days <= 0 {
		days = defaultErrorLogDays
	}
	if limit <= 0 {
		limit = defaultErrorLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	since := time.Now().AddDate(0, 0, -days)
	logs, err := s.syncLogs.ListByStatusSince(ctx, models.OutcomeFailed, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	return logs, nil
}

// ListDevicesWithFailures returns all devices currently in FAILED state,
// most recently synced first; devices that never synced sort last.
func (s *SyncService) ListDevicesWithFailures(ctx context.Context) ([]models.Device, error) {
	devices, err := s.devices.ListByStatus(ctx, models.DeviceStateFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed devices: %w", err)
	}
	return devices, nil
}
