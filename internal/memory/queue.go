package memory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/queue"
)

// DefaultRedeliveryDelay is how long a failed message waits before Consume
// hands it out again.
const DefaultRedeliveryDelay = time.Second

type pendingMessage struct {
	msg        queue.Message
	deliveries int
	notBefore  time.Time
}

// Queue is an in-process queue. Failed deliveries are appended back to the
// tail after RedeliveryDelay, so ordering is not preserved across
// redeliveries. A message that fails MaxDeliveries times is dropped.
type Queue struct {
	// RedeliveryDelay and MaxDeliveries must be set before the queue is used.
	RedeliveryDelay time.Duration
	MaxDeliveries   int

	name   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []pendingMessage
	nextID  int
	acked   int
	dropped int
	notify  chan struct{}
	sendErr error
}

// NewQueue creates an empty queue.
func NewQueue(name string, logger *slog.Logger) *Queue {
	return &Queue{
		RedeliveryDelay: DefaultRedeliveryDelay,
		MaxDeliveries:   queue.DefaultMaxDeliveries,
		name:            name,
		logger:          logger.With("queue", name),
		now:             time.Now,
		notify:          make(chan struct{}, 1),
	}
}

func (q *Queue) Send(_ context.Context, payload any) error {
	q.mu.Lock()
	sendErr := q.sendErr
	q.mu.Unlock()
	if sendErr != nil {
		return &domain.QueueSendError{Queue: q.name, Err: sendErr}
	}

	body, err := queue.Encode(payload)
	if err != nil {
		return &domain.QueueSendError{Queue: q.name, Err: err}
	}

	q.mu.Lock()
	q.nextID++
	q.pending = append(q.pending, pendingMessage{msg: queue.Message{
		ID:          strconv.Itoa(q.nextID),
		Body:        body,
		ContentType: queue.ContentTypeJSON,
	}})
	q.mu.Unlock()
	q.signal()
	return nil
}

// SetSendErr makes every later Send fail with err. Nil restores sending.
func (q *Queue) SetSendErr(err error) {
	q.mu.Lock()
	q.sendErr = err
	q.mu.Unlock()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Consume delivers messages until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, handler queue.Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pm, wait, ok := q.popReady()
		if ok {
			q.deliver(ctx, handler, pm)
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-q.notify:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain delivers every pending message once, ignoring redelivery delays, and
// returns how many were delivered. Messages that fail are requeued but not
// retried in this call.
func (q *Queue) Drain(ctx context.Context, handler queue.Handler) int {
	q.mu.Lock()
	n := len(q.pending)
	q.mu.Unlock()

	for i := 0; i < n; i++ {
		pm, ok := q.pop()
		if !ok {
			return i
		}
		q.deliver(ctx, handler, pm)
	}
	return n
}

func (q *Queue) deliver(ctx context.Context, handler queue.Handler, pm pendingMessage) {
	pm.deliveries++
	err := handler(ctx, pm.msg)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrPoison):
		q.logger.Error("dropping undecodable message", "message_id", pm.msg.ID, "error", err)
	case q.MaxDeliveries > 0 && pm.deliveries >= q.MaxDeliveries:
		q.logger.Error("dropping message after max deliveries",
			"message_id", pm.msg.ID,
			"deliveries", pm.deliveries,
			"error", err,
		)
		q.mu.Lock()
		q.dropped++
		q.mu.Unlock()
		return
	default:
		q.logger.Error("handler failed, message will be redelivered", "message_id", pm.msg.ID, "error", err)
		pm.notBefore = q.now().Add(q.RedeliveryDelay)
		q.mu.Lock()
		q.pending = append(q.pending, pm)
		q.mu.Unlock()
		q.signal()
		return
	}
	q.mu.Lock()
	q.acked++
	q.mu.Unlock()
}

// popReady removes the first message whose redelivery time has passed. When
// none is ready it returns how long until the earliest one is.
func (q *Queue) popReady() (pendingMessage, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var wait time.Duration
	for i, pm := range q.pending {
		if !pm.notBefore.After(now) {
			q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
			return pm, 0, true
		}
		if d := pm.notBefore.Sub(now); wait == 0 || d < wait {
			wait = d
		}
	}
	return pendingMessage{}, wait, false
}

func (q *Queue) pop() (pendingMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return pendingMessage{}, false
	}
	pm := q.pending[0]
	q.pending = q.pending[1:]
	return pm, true
}

// Len returns the number of undelivered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Acked returns the number of acknowledged messages.
func (q *Queue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}

// Dropped returns the number of messages dropped after MaxDeliveries.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Messages returns a copy of the undelivered messages.
func (q *Queue) Messages() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Message, len(q.pending))
	for i, pm := range q.pending {
		out[i] = pm.msg
	}
	return out
}
