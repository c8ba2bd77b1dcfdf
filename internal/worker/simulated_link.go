package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedLink stands in for real device communication: it waits out a
// configured latency and then reports success or failure at a configured
// rate, with randomized transfer metrics.
type SimulatedLink struct {
	Latency     time.Duration
	SuccessRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedLink creates a link with the given latency and success rate
// (0.0 to 1.0).
func NewSimulatedLink(latency time.Duration, successRate float64) *SimulatedLink {
	return &SimulatedLink{
		Latency:     latency,
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run waits out the simulated transfer and produces a terminal result.
// Returns a failed result immediately if ctx is cancelled first.
func (l *SimulatedLink) Run(ctx context.Context, job Job) Result {
	started := time.Now()

	select {
	case <-ctx.Done():
		return Result{
			Success:      false,
			ErrorMessage: "sync cancelled before completion",
			ErrorCode:    "CANCELLED",
			FinishedAt:   time.Now(),
			Duration:     time.Since(started),
		}
	case <-time.After(l.Latency):
	}

	l.mu.Lock()
	success := l.rng.Float64() < l.SuccessRate
	bytes := l.rng.Int63n(1024 * 1024)
	files := l.rng.Int63n(50)
	failedBytes := l.rng.Int63n(512 * 1024)
	l.mu.Unlock()

	now := time.Now()
	if success {
		return Result{
			Success:          true,
			BytesTransferred: bytes,
			FilesTransferred: files,
			FinishedAt:       now,
			Duration:         now.Sub(started),
		}
	}
	return Result{
		Success:          false,
		BytesTransferred: failedBytes,
		ErrorMessage:     "Connection timeout during file transfer",
		ErrorCode:        "TIMEOUT",
		FinishedAt:       now,
		Duration:         now.Sub(started),
	}
}
