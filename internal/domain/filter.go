package domain

import (
	"context"
	"log/slog"
	"time"
)

// FilterResult summarises one filter invocation.
type FilterResult struct {
	Events  int
	Puts    int
	Deletes int
	Ignored int
}

// FilterStage consumes raw event batches, keeps paper posts and forwards the
// resulting writes through a WriteCoalescer. Processing a batch twice has the
// same effect as processing it once.
type FilterStage struct {
	classifier *PaperClassifier
	coalescer  *WriteCoalescer
	logger     *slog.Logger
	now        func() time.Time
}

// NewFilterStage creates a filter stage.
func NewFilterStage(classifier *PaperClassifier, coalescer *WriteCoalescer, logger *slog.Logger) *FilterStage {
	return &FilterStage{
		classifier: classifier,
		coalescer:  coalescer,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessBatch classifies every event in the batch and applies the writes.
// A store failure fails the whole batch so the transport redelivers it.
func (s *FilterStage) ProcessBatch(ctx context.Context, batch RawEventBatch) (FilterResult, error) {
	now := s.now()
	result := FilterResult{Events: len(batch.Events)}

	var (
		puts    []PaperPost
		deletes []string
	)
	for _, event := range batch.Events {
		switch intent := ClassifyEvent(event, s.classifier, now).(type) {
		case PutIntent:
			puts = append(puts, intent.Post)
		case DeleteIntent:
			deletes = append(deletes, intent.URI)
		case IgnoreIntent:
			result.Ignored++
		}
	}
	result.Puts = len(puts)
	result.Deletes = len(deletes)

	if err := s.coalescer.Apply(ctx, puts, deletes); err != nil {
		return result, err
	}

	if result.Puts > 0 {
		s.logger.Info("paper posts matched", "matched", result.Puts, "events", result.Events)
	}
	s.logger.Debug("filtered batch",
		"events", result.Events,
		"puts", result.Puts,
		"deletes", result.Deletes,
		"ignored", result.Ignored,
	)
	return result, nil
}
