package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const (
	fieldBody        = "body"
	fieldContentType = "content_type"
	fieldOriginalID  = "original_id"
	fieldDeliveries  = "deliveries"
)

// StreamOptions tunes a RedisStream consumer.
type StreamOptions struct {
	// Group is the consumer group shared by all workers of a stage.
	Group string

	// Consumer names this worker inside the group.
	Consumer string

	// Count is the maximum number of messages read per call.
	Count int64

	// Block is how long a read waits for new messages.
	Block time.Duration

	// VisibilityTimeout is how long a delivered but unacknowledged message
	// stays pending before another read reclaims it.
	VisibilityTimeout time.Duration

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration

	// MaxLen approximately caps the stream length. Zero disables trimming.
	MaxLen int64

	// MaxDeliveries is how many times a message is delivered before it is
	// moved to the dead-letter stream instead of being reclaimed again.
	MaxDeliveries int64
}

func (o *StreamOptions) setDefaults(stream string) {
	if o.Group == "" {
		o.Group = stream + "-workers"
	}
	if o.Consumer == "" {
		o.Consumer = "worker-1"
	}
	if o.Count <= 0 {
		o.Count = 10
	}
	if o.Block <= 0 {
		o.Block = 5 * time.Second
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = time.Minute
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 30 * time.Second
	}
	if o.MaxDeliveries <= 0 {
		o.MaxDeliveries = DefaultMaxDeliveries
	}
}

// RedisStream is a queue backed by a Redis stream and consumer group. Sent
// messages are XADDed; consumers read with XREADGROUP, acknowledge with XACK
// and reclaim stale pending entries with XAUTOCLAIM.
type RedisStream struct {
	client *redis.Client
	stream string
	opts   StreamOptions
	logger *slog.Logger
}

// NewRedisStream creates a queue on the named stream.
func NewRedisStream(client *redis.Client, stream string, opts StreamOptions, logger *slog.Logger) *RedisStream {
	opts.setDefaults(stream)
	return &RedisStream{
		client: client,
		stream: stream,
		opts:   opts,
		logger: logger.With("queue", stream),
	}
}

// Send appends payload to the stream.
func (q *RedisStream) Send(ctx context.Context, payload any) error {
	body, err := Encode(payload)
	if err != nil {
		return &domain.QueueSendError{Queue: q.stream, Err: err}
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			fieldBody:        body,
			fieldContentType: ContentTypeJSON,
		},
	}
	if q.opts.MaxLen > 0 {
		args.MaxLen = q.opts.MaxLen
		args.Approx = true
	}

	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return &domain.QueueSendError{Queue: q.stream, Err: err}
	}
	return nil
}

// DeadLetterStream returns the stream that receives messages which failed
// MaxDeliveries times.
func (q *RedisStream) DeadLetterStream() string {
	return q.stream + "-dead"
}

// Consume delivers messages to handler until ctx is cancelled. Messages whose
// handler fails stay pending and are reclaimed after VisibilityTimeout, up to
// MaxDeliveries times.
func (q *RedisStream) Consume(ctx context.Context, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	q.logger.Info("consuming", "group", q.opts.Group, "consumer", q.opts.Consumer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		reclaimed, err := q.reclaim(ctx)
		if err != nil {
			q.logger.Error("reclaim pending messages failed", "error", err)
		}
		for _, m := range reclaimed {
			q.handle(ctx, handler, m)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.opts.Group,
			Consumer: q.opts.Consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.opts.Count,
			Block:    q.opts.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Error("read from stream failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, m := range s.Messages {
				q.handle(ctx, handler, m)
			}
		}
	}
}

func (q *RedisStream) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", q.opts.Group, q.stream, err)
	}
	return nil
}

func (q *RedisStream) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	if err := q.deadLetterExhausted(ctx); err != nil {
		q.logger.Error("dead-letter exhausted messages failed", "error", err)
	}

	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.VisibilityTimeout,
		Start:    "0-0",
		Count:    q.opts.Count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return msgs, nil
}

// deadLetterExhausted moves reclaimable messages that were already delivered
// MaxDeliveries times to the dead-letter stream and acknowledges them.
func (q *RedisStream) deadLetterExhausted(ctx context.Context) error {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.opts.Group,
		Idle:   q.opts.VisibilityTimeout,
		Start:  "-",
		End:    "+",
		Count:  q.opts.Count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list pending: %w", err)
	}

	deliveries := exhaustedDeliveries(pending, q.opts.MaxDeliveries)
	if len(deliveries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(deliveries))
	for id := range deliveries {
		ids = append(ids, id)
	}

	msgs, err := q.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.VisibilityTimeout,
		Messages: ids,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("claim exhausted: %w", err)
	}

	for _, m := range msgs {
		values := map[string]any{
			fieldOriginalID: m.ID,
			fieldDeliveries: deliveries[m.ID],
		}
		for k, v := range m.Values {
			values[k] = v
		}
		if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.DeadLetterStream(), Values: values}).Err(); err != nil {
			q.logger.Error("dead-letter write failed", "message_id", m.ID, "error", err)
			continue
		}
		if err := q.client.XAck(ctx, q.stream, q.opts.Group, m.ID).Err(); err != nil {
			q.logger.Error("ack failed", "message_id", m.ID, "error", err)
			continue
		}
		q.logger.Error("message moved to dead-letter stream",
			"message_id", m.ID,
			"deliveries", deliveries[m.ID],
			"dead_letter_stream", q.DeadLetterStream(),
		)
	}
	return nil
}

// exhaustedDeliveries returns the delivery count of every pending entry that
// has reached maxDeliveries, keyed by message id.
func exhaustedDeliveries(pending []redis.XPendingExt, maxDeliveries int64) map[string]int64 {
	out := make(map[string]int64)
	for _, p := range pending {
		if p.RetryCount >= maxDeliveries {
			out[p.ID] = p.RetryCount
		}
	}
	return out
}

func (q *RedisStream) handle(ctx context.Context, handler Handler, m redis.XMessage) {
	msg := Message{ID: m.ID}
	if body, ok := m.Values[fieldBody].(string); ok {
		msg.Body = []byte(body)
	}
	if ct, ok := m.Values[fieldContentType].(string); ok {
		msg.ContentType = ct
	}

	hctx, cancel := context.WithTimeout(ctx, q.opts.HandlerTimeout)
	err := handler(hctx, msg)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, ErrPoison):
		q.logger.Error("dropping undecodable message", "message_id", m.ID, "error", err)
	default:
		q.logger.Error("handler failed, message will be redelivered", "message_id", m.ID, "error", err)
		return
	}

	if err := q.client.XAck(ctx, q.stream, q.opts.Group, m.ID).Err(); err != nil {
		q.logger.Error("ack failed", "message_id", m.ID, "error", err)
	}
}
