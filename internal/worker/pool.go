package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job carries everything a completion worker needs to run one sync attempt
// and report it back: the device's internal id, the PENDING log created at
// trigger time, and the attempt parameters.
type Job struct {
	DeviceID         string
	LogID            string
	ExternalDeviceID string
	SyncType         string
	Forced           bool
	TriggeredAt      time.Time
}

// Result is the terminal outcome of one attempt as produced by the device
// link. Success determines which of the optional fields are meaningful.
type Result struct {
	Success          bool
	BytesTransferred int64
	FilesTransferred int64
	ErrorMessage     string
	ErrorCode        string
	FinishedAt       time.Time
	Duration         time.Duration
}

// DeviceLink performs the actual device communication for one job. It blocks
// for the duration of the attempt and returns its terminal result; it must
// respect ctx cancellation.
type DeviceLink interface {
	Run(ctx context.Context, job Job) Result
}

// CompletionFunc receives the terminal result of a job exactly once per
// dispatch. Implementations must be idempotent per log id.
type CompletionFunc func(ctx context.Context, job Job, result Result) error

// Pool runs sync attempts asynchronously. Dispatch is fire-and-forget for
// the caller; each job runs on its own goroutine, reports through the
// completion callback, and is tracked so Shutdown can drain in-flight work.
type Pool struct {
	link         DeviceLink
	complete     CompletionFunc
	maxRetries   int
	retryBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool delivering results to complete. A failed delivery
// is retried maxRetries times with linear backoff before the pool gives up
// and leaves the device stuck in PENDING for the watchdog to reap.
func NewPool(link DeviceLink, complete CompletionFunc, maxRetries int, retryBackoff time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		link:         link,
		complete:     complete,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Dispatch schedules one sync attempt and returns immediately.
func (p *Pool) Dispatch(job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(job)
	}()
}

func (p *Pool) run(job Job) {
	result := p.link.Run(p.ctx, job)
	if p.ctx.Err() != nil {
		log.Printf("Dropping result for sync log %s: pool shutting down", job.LogID)
		return
	}
	p.deliver(job, result)
}

// deliver reports the result, retrying bookkeeping failures with backoff.
func (p *Pool) deliver(job Job, result Result) {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * p.retryBackoff
			select {
			case <-p.ctx.Done():
				log.Printf("Abandoning completion for sync log %s: pool shutting down", job.LogID)
				return
			case <-time.After(backoff):
			}
		}

		err = p.complete(p.ctx, job, result)
		if err == nil {
			return
		}
		log.Printf("Completion for sync log %s failed (attempt %d): %v", job.LogID, attempt+1, err)
	}

	// Device stays PENDING; the watchdog will eventually force it to FAILED.
	log.Printf("Giving up on completion for sync log %s after %d attempts: %v", job.LogID, p.maxRetries+1, err)
}

// Shutdown stops accepting useful work and waits for in-flight jobs to
// finish, up to ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
