package queue

import (
	"io"
	"log/slog"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStreamOptions_Defaults(t *testing.T) {
	var opts StreamOptions
	opts.setDefaults(GenRequests)

	assert.Equal(t, "gen-requests-workers", opts.Group)
	assert.Equal(t, int64(DefaultMaxDeliveries), opts.MaxDeliveries)
	assert.Equal(t, time.Minute, opts.VisibilityTimeout)

	opts = StreamOptions{MaxDeliveries: 2}
	opts.setDefaults(GenRequests)
	assert.Equal(t, int64(2), opts.MaxDeliveries)
}

func TestExhaustedDeliveries(t *testing.T) {
	pending := []redis.XPendingExt{
		{ID: "1-0", RetryCount: 1},
		{ID: "2-0", RetryCount: 3},
		{ID: "3-0", RetryCount: 7},
	}

	assert.Equal(t, map[string]int64{"2-0": 3, "3-0": 7}, exhaustedDeliveries(pending, 3))
	assert.Empty(t, exhaustedDeliveries(pending, 10))
	assert.Empty(t, exhaustedDeliveries(nil, 3))
}

func TestDeadLetterStream(t *testing.T) {
	q := NewRedisStream(redis.NewClient(&redis.Options{}), GenRequests, StreamOptions{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "gen-requests-dead", q.DeadLetterStream())
}
