package firehose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

func TestToRawEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		ok    bool
		op    domain.Operation
	}{
		{
			name:  "post create",
			frame: `{"did":"did:plc:abc","time_us":1725911162329308,"kind":"commit","commit":{"rev":"r","operation":"create","collection":"app.bsky.feed.post","rkey":"3l3qo2vuowo2b","record":{"text":"hi"},"cid":"bafy"}}`,
			ok:    true,
			op:    domain.OperationCreate,
		},
		{
			name:  "post delete",
			frame: `{"did":"did:plc:abc","time_us":1725911162329308,"kind":"commit","commit":{"rev":"r","operation":"delete","collection":"app.bsky.feed.post","rkey":"3l3qo2vuowo2b"}}`,
			ok:    true,
			op:    domain.OperationDelete,
		},
		{
			name:  "identity event",
			frame: `{"did":"did:plc:abc","time_us":1725911162329308,"kind":"identity","identity":{"did":"did:plc:abc"}}`,
		},
		{
			name:  "like commit",
			frame: `{"did":"did:plc:abc","time_us":1,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","rkey":"x"}}`,
		},
		{
			name:  "bad did",
			frame: `{"did":"nope","time_us":1,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"x"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := parseEvent([]byte(tt.frame))
			require.NoError(t, err)

			raw, ok := toRawEvent(event)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.op, raw.Operation)
			assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b", raw.URI)
			assert.Equal(t, int64(1725911162329308), raw.TimeUS)
		})
	}
}

func TestBuildURL(t *testing.T) {
	src := NewJetstreamSource("wss://jetstream.example/subscribe", discardLogger)

	u, err := src.buildURL(nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://jetstream.example/subscribe?wantedCollections=app.bsky.feed.post", u)

	cursor := int64(1725911162329308)
	u, err = src.buildURL(&cursor)
	require.NoError(t, err)
	assert.Contains(t, u, "cursor=1725911162329308")
}
