package main

import (
	"context"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/queue"
)

func filterHandler(stage *domain.FilterStage) queue.Handler {
	return queue.JSON(func(ctx context.Context, batch domain.RawEventBatch) error {
		_, err := stage.ProcessBatch(ctx, batch)
		return err
	})
}

func generateHandler(builder *domain.FeedBuilder) queue.Handler {
	return queue.JSON(func(ctx context.Context, req domain.GenerationRequest) error {
		_, err := builder.Process(ctx, req)
		return err
	})
}

func bookkeepHandler(bookkeeper *domain.AccessBookkeeper) queue.Handler {
	return queue.JSON(bookkeeper.Process)
}
