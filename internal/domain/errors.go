package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks caller mistakes such as a malformed cursor.
var ErrInvalidRequest = errors.New("invalid request")

// StoreError is returned when a durable store or the feed cache fails. The
// invocation that hit it fails and relies on queue redelivery.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// QueueSendError is returned when a payload could not be handed to the queue
// transport.
type QueueSendError struct {
	Queue string
	Err   error
}

func (e *QueueSendError) Error() string {
	return fmt.Sprintf("send to queue %s: %v", e.Queue, e.Err)
}

func (e *QueueSendError) Unwrap() error { return e.Err }

// ExternalAPIError is returned by the social graph and firehose clients.
type ExternalAPIError struct {
	Service string
	Status  int
	Message string
}

func (e *ExternalAPIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s API error: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, e.Message)
}

// Permanent reports whether retrying the call cannot succeed: a 4xx answer
// other than timeouts and rate limits.
func (e *ExternalAPIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != 408 && e.Status != 429
}

// retryable reports whether err may succeed on redelivery.
func retryable(err error) bool {
	var apiErr *ExternalAPIError
	if errors.As(err, &apiErr) {
		return !apiErr.Permanent()
	}
	return true
}
