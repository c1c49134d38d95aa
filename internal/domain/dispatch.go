package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

const (
	DefaultDispatchBatchSize   = 20
	DefaultDispatchConcurrency = 3
)

// DispatchResult summarises one dispatch run.
type DispatchResult struct {
	Users   int
	Batches int
	Failed  int
}

// Dispatcher periodically enqueues feed generation requests for every active
// user. It is best-effort: a batch that fails to send is logged and picked up
// again by the next run's full listing.
type Dispatcher struct {
	users       UserRepository
	genRequests MessageSender
	batchSize   int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Pipeline
}

// NewDispatcher creates a dispatcher with the default batch size and send
// concurrency.
func NewDispatcher(users UserRepository, genRequests MessageSender, logger *slog.Logger, m *metrics.Pipeline) *Dispatcher {
	return &Dispatcher{
		users:       users,
		genRequests: genRequests,
		batchSize:   DefaultDispatchBatchSize,
		concurrency: DefaultDispatchConcurrency,
		logger:      logger,
		metrics:     m,
	}
}

// Run lists active users, partitions them into batches and sends one
// generation request per batch. Only a failure to list users is returned.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	dids, err := d.users.ListActive(ctx)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("list active users: %w", err)
	}

	requests := buildGenerationRequests(dids, d.batchSize)
	result := DispatchResult{Users: len(dids), Batches: len(requests)}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, req := range requests {
		g.Go(func() error {
			if err := d.genRequests.Send(ctx, req); err != nil {
				failed.Add(1)
				d.metrics.DispatchFailures.Inc()
				d.logger.Error("failed to enqueue generation request",
					"batch_id", req.BatchID,
					"users", len(req.Users),
					"error", err,
				)
				return nil
			}
			d.metrics.DispatchBatches.Inc()
			return nil
		})
	}
	_ = g.Wait()

	result.Failed = int(failed.Load())
	d.logger.Info("dispatch complete",
		"users", result.Users,
		"batches", result.Batches,
		"failed", result.Failed,
	)
	return result, nil
}

// Start runs the dispatcher immediately and then at the given interval. It
// blocks until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	d.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runLogged(ctx)
		}
	}
}

func (d *Dispatcher) runLogged(ctx context.Context) {
	if _, err := d.Run(ctx); err != nil {
		d.logger.Error("dispatch failed", "error", err)
	}
}

func buildGenerationRequests(dids []string, batchSize int) []GenerationRequest {
	requests := make([]GenerationRequest, 0, (len(dids)+batchSize-1)/batchSize)
	for start := 0; start < len(dids); start += batchSize {
		end := min(start+batchSize, len(dids))
		index := len(requests)
		requests = append(requests, GenerationRequest{
			Users:       dids[start:end],
			BatchID:     index + 1,
			GenerateAgg: index == 0,
		})
	}
	return requests
}
