package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// SnapshotSource reads the orders, restaurants and menu availability of one batch.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// Dispatcher ranks capable restaurants for every order of a batch.
type Dispatcher interface {
	Dispatch(ctx context.Context, orders []domain.OrderForRanking, restaurants []domain.RestaurantCandidate, capabilities []domain.MenuCapability) []domain.RankedResult
}

// ResultLoader publishes the results of one batch.
type ResultLoader interface {
	LoadBatch(ctx context.Context, batchID string, results []domain.RankedResult) error
}

// Pipeline runs the periodic snapshot-dispatch-publish loop.
type Pipeline struct {
	source     SnapshotSource
	dispatcher Dispatcher
	loader     ResultLoader
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	interval   time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(s SnapshotSource, d Dispatcher, l ResultLoader, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Pipeline {
	return &Pipeline{
		source:     s,
		dispatcher: d,
		loader:     l,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any batch yet")
	}
	return nil
}

// Run dispatches a batch immediately and then once per interval until the
// context is cancelled. Failed batches are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := p.interval
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("dispatch batch failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !retry.SleepWithContext(ctx, wait) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// RunOnce performs a single load-dispatch-publish cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := time.Now()

	snap, err := p.source.LoadSnapshot(ctx)
	if err != nil {
		p.metrics.BatchErrors.Inc()
		return fmt.Errorf("load snapshot: %w", err)
	}

	results := p.dispatcher.Dispatch(ctx, snap.Orders, snap.Restaurants, snap.Capabilities)

	batchID := uuid.NewString()
	if err := p.loader.LoadBatch(ctx, batchID, results); err != nil {
		p.metrics.BatchErrors.Inc()
		return fmt.Errorf("publish batch %s: %w", batchID, err)
	}

	elapsed := time.Since(start)
	p.metrics.Batches.Inc()
	p.metrics.BatchDuration.Observe(elapsed.Seconds())
	p.ready.Store(true)

	p.logger.Info("dispatch batch published",
		"batch_id", batchID,
		"orders", len(results),
		"restaurants", len(snap.Restaurants),
		"duration", elapsed,
	)
	return nil
}
