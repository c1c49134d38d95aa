package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// wantedCollections is the set of AT Proto collection NSIDs requested from
// Jetstream. Only post events are needed for paper matching.
var wantedCollections = []string{
	domain.PostCollection,
}

// JetstreamSource subscribes to a Jetstream websocket endpoint.
type JetstreamSource struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewJetstreamSource creates a source for the given endpoint, e.g.
// wss://jetstream1.us-east.bsky.network/subscribe.
func NewJetstreamSource(firehoseURL string, logger *slog.Logger) *JetstreamSource {
	return &JetstreamSource{
		url:    firehoseURL,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

func (s *JetstreamSource) buildURL(cursor *int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse firehose url: %w", err)
	}
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor != nil {
		q.Set("cursor", strconv.FormatInt(*cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe streams post commits into out until ctx is cancelled or the
// connection fails. It never closes out.
func (s *JetstreamSource) Subscribe(ctx context.Context, cursor *int64, out chan<- domain.RawEvent) error {
	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		apiErr := &domain.ExternalAPIError{Service: "jetstream", Message: err.Error()}
		if resp != nil {
			apiErr.Status = resp.StatusCode
		}
		return apiErr
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to firehose")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &domain.ExternalAPIError{Service: "jetstream", Message: fmt.Sprintf("read message: %v", err)}
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Warn("failed to parse event", "error", err)
			continue
		}
		raw, ok := toRawEvent(event)
		if !ok {
			continue
		}

		select {
		case out <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
