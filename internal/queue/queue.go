// Package queue is the transport between pipeline stages. Delivery is
// at-least-once: a message is acknowledged only after its handler returns nil
// and is redelivered otherwise. No ordering across messages is guaranteed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Queue names.
const (
	RawEvents    = "raw-events"
	GenRequests  = "gen-requests"
	AccessEvents = "access-events"
)

// DefaultMaxDeliveries is how many times a failing message is delivered
// before it is dropped or dead-lettered.
const DefaultMaxDeliveries = 5

// ContentTypeJSON is the only payload encoding used by the pipeline.
const ContentTypeJSON = "application/json"

// Message is one delivery.
type Message struct {
	ID          string
	Body        []byte
	ContentType string
}

// Handler processes one message. Returning nil acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Consumer delivers messages from one queue to a handler until ctx is
// cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}

// ErrPoison marks a message that can never be processed. Consumers
// acknowledge and drop it instead of redelivering.
var ErrPoison = errors.New("poison message")

// JSON adapts a typed handler to a Handler by decoding the message body.
func JSON[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrPoison, msg.ID, err)
		}
		return fn(ctx, payload)
	}
}

// Encode marshals a payload for sending.
func Encode(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrPoison, err)
	}
	return body, nil
}
