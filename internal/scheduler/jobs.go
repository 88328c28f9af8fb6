package scheduler

import (
	"context"
	"sync"
	"time"

	"brokerfolio/internal/logger"
	"brokerfolio/internal/services"
)

// PriceRefreshJobName identifies the periodic price refresh.
const PriceRefreshJobName = "price-refresh"

// PriceRefreshJob runs one refresh cycle per tick. Quote failures are
// logged and retried on the next tick.
type PriceRefreshJob struct {
	pricing services.PricingServicer

	mu      sync.Mutex
	lastRun time.Time
	last    *services.RefreshResult
}

// NewPriceRefreshJob creates a new PriceRefreshJob.
func NewPriceRefreshJob(pricing services.PricingServicer) *PriceRefreshJob {
	return &PriceRefreshJob{pricing: pricing}
}

// Name returns the job name.
func (j *PriceRefreshJob) Name() string { return PriceRefreshJobName }

// Execute refreshes every tracked instrument's price.
func (j *PriceRefreshJob) Execute(ctx context.Context) error {
	result, err := j.pricing.RefreshPrices(ctx)
	if err != nil {
		return err
	}

	log := logger.Named("scheduler")
	if len(result.Failed) > 0 {
		log.Warnw("price refresh finished with failures",
			"requested", result.Requested,
			"updated", result.Updated,
			"failed", len(result.Failed),
			"summary", result.Summary,
		)
	} else {
		log.Infow("price refresh finished",
			"requested", result.Requested,
			"updated", result.Updated,
			"duration", result.Duration,
		)
	}

	j.mu.Lock()
	j.lastRun = time.Now()
	j.last = result
	j.mu.Unlock()
	return nil
}

// LastRun returns when the last successful cycle finished and its result.
// The result is nil before the first success.
func (j *PriceRefreshJob) LastRun() (time.Time, *services.RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.last
}
