// Package firehose consumes the Jetstream firehose and forwards post commits
// to the raw-events queue in batches.
package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

const (
	DefaultBatchSize     = 200
	DefaultFlushInterval = 2 * time.Second
	reconnectBackoff     = 5 * time.Second
)

// errStreamClosed is returned when a source ends without an error.
var errStreamClosed = errors.New("firehose stream closed")

// Source delivers filtered firehose events. Subscribe starts after cursor
// when it is non-nil and blocks until the stream ends.
type Source interface {
	Subscribe(ctx context.Context, cursor *int64, out chan<- domain.RawEvent) error
}

// IngestorConfig bounds the batches handed to the queue.
type IngestorConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Ingestor batches firehose events and checkpoints the stream cursor. The
// cursor only moves after the batch containing it was accepted by the queue.
type Ingestor struct {
	source  Source
	cursors domain.CursorRepository
	out     domain.MessageSender
	cfg     IngestorConfig
	logger  *slog.Logger
	metrics *metrics.Pipeline
	backoff time.Duration
}

// NewIngestor creates an ingestor. Zero config values fall back to the
// defaults.
func NewIngestor(source Source, cursors domain.CursorRepository, out domain.MessageSender, cfg IngestorConfig, logger *slog.Logger, m *metrics.Pipeline) *Ingestor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Ingestor{
		source:  source,
		cursors: cursors,
		out:     out,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		backoff: reconnectBackoff,
	}
}

// Start ingests until ctx is cancelled, reconnecting from the last committed
// cursor after any failure.
func (i *Ingestor) Start(ctx context.Context) error {
	for {
		err := i.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Error("firehose ingestion stopped, reconnecting", "error", err, "backoff", i.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.backoff):
		}
	}
}

// RunOnce runs a single subscription from the committed cursor. It returns
// when the stream ends, a batch cannot be forwarded or the cursor cannot be
// committed.
func (i *Ingestor) RunOnce(ctx context.Context) error {
	var start *int64
	cursor, ok, err := i.cursors.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		start = &cursor
		i.logger.Info("resuming firehose", "cursor", cursor)
	} else {
		i.logger.Info("no stored cursor, starting from live")
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan domain.RawEvent, i.cfg.BatchSize)
	done := make(chan error, 1)
	go func() {
		done <- i.source.Subscribe(subCtx, start, events)
	}()

	batch := make([]domain.RawEvent, 0, i.cfg.BatchSize)
	timer := time.NewTimer(i.cfg.FlushInterval)
	defer timer.Stop()

	flush := func() error {
		err := i.flush(ctx, batch)
		batch = batch[:0]
		timer.Reset(i.cfg.FlushInterval)
		return err
	}
	add := func(ev domain.RawEvent) error {
		i.metrics.EventsIngested.Inc()
		batch = append(batch, ev)
		if len(batch) >= i.cfg.BatchSize {
			return flush()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-done:
			for drained := false; !drained; {
				select {
				case ev := <-events:
					if ferr := add(ev); ferr != nil {
						return ferr
					}
				default:
					drained = true
				}
			}
			if ferr := flush(); ferr != nil {
				return ferr
			}
			if err == nil {
				err = errStreamClosed
			}
			return err

		case ev := <-events:
			if err := add(ev); err != nil {
				return err
			}

		case <-timer.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

func (i *Ingestor) flush(ctx context.Context, events []domain.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := domain.RawEventBatch{Events: slices.Clone(events)}
	var last int64
	for _, ev := range events {
		last = max(last, ev.TimeUS)
	}
	if last > 0 {
		batch.Cursor = &last
	}

	if err := i.out.Send(ctx, batch); err != nil {
		return fmt.Errorf("forward batch of %d events: %w", len(events), err)
	}
	i.metrics.BatchesForwarded.Inc()
	i.metrics.BatchSize.Observe(float64(len(events)))

	if batch.Cursor == nil {
		return nil
	}
	if err := i.cursors.UpdateCursor(ctx, last); err != nil {
		return fmt.Errorf("commit cursor: %w", err)
	}
	i.metrics.CursorCommits.Inc()
	i.logger.Debug("batch forwarded", "events", len(events), "cursor", last)
	return nil
}
