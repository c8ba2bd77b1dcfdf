package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/worker"
)

const staleBatchSize = 25

// StaleLogSource lists PENDING logs older than the cutoff.
type StaleLogSource interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.SyncLog, error)
}

// Completer resolves an attempt; the watchdog feeds forced failures through
// the same idempotent completion path the worker uses, so a late worker
// result racing the watchdog is still a safe no-op for whichever side loses.
type Completer interface {
	HandleCompletion(ctx context.Context, job worker.Job, result worker.Result) error
}

// Watchdog polls for sync attempts stuck in PENDING past a maximum age and
// forces them to FAILED. Without it a worker that never reports leaves its
// device stuck in PENDING forever.
type Watchdog struct {
	syncLogs      StaleLogSource
	completer     Completer
	interval      time.Duration
	maxPendingAge time.Duration
}

func New(syncLogs StaleLogSource, completer Completer, interval, maxPendingAge time.Duration) *Watchdog {
	return &Watchdog{
		syncLogs:      syncLogs,
		completer:     completer,
		interval:      interval,
		maxPendingAge: maxPendingAge,
	}
}

// Start begins polling for stale attempts. Blocks until ctx is cancelled.
func (w *Watchdog) Start(ctx context.Context) error {
	log.Printf("Starting sync watchdog (interval %s, max pending age %s)", w.interval, w.maxPendingAge)

	// Sweep once at startup to reap attempts orphaned by a previous run.
	if err := w.sweep(ctx); err != nil {
		log.Printf("Warning: watchdog sweep on startup failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watchdog shutting down...")
			return ctx.Err()
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				log.Printf("Error sweeping stale sync attempts: %v", err)
			}
		}
	}
}

// sweep forces every overdue PENDING attempt to FAILED.
func (w *Watchdog) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.maxPendingAge)
	stale, err := w.syncLogs.ListStalePending(ctx, cutoff, staleBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	log.Printf("Found %d stale sync attempt(s) to reap", len(stale))

	for _, syncLog := range stale {
		now := time.Now()
		job := worker.Job{
			DeviceID:    syncLog.DeviceID,
			LogID:       syncLog.ID,
			SyncType:    string(syncLog.SyncData.SyncType),
			Forced:      syncLog.SyncData.ForcedSync,
			TriggeredAt: syncLog.SyncData.TriggeredAt,
		}
		result := worker.Result{
			Success:      false,
			ErrorMessage: "Sync attempt exceeded maximum pending duration",
			ErrorCode:    "STALE",
			FinishedAt:   now,
			Duration:     now.Sub(syncLog.CreatedAt),
		}
		if err := w.completer.HandleCompletion(ctx, job, result); err != nil {
			log.Printf("Failed to reap stale sync log %s: %v", syncLog.ID, err)
		}
	}
	return nil
}
