package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord_SearchText(t *testing.T) {
	raw := []byte(`{
		"$type": "app.bsky.feed.post",
		"text": "Check THIS out",
		"tags": ["Science"],
		"facets": [{"features": [
			{"$type": "app.bsky.richtext.facet#link", "uri": "https://arxiv.org/abs/2401.01234"},
			{"$type": "app.bsky.richtext.facet#tag", "tag": "ML"}
		]}],
		"labels": {"values": [{"val": "research"}]},
		"embed": {
			"$type": "app.bsky.embed.recordWithMedia",
			"record": {"record": {"uri": "at://did:plc:q/app.bsky.feed.post/1", "cid": "c"}},
			"media": {
				"$type": "app.bsky.embed.external",
				"external": {"uri": "https://doi.org/10.1000/xyz", "title": "A Title", "description": "Desc"}
			}
		},
		"reply": {
			"root": {"uri": "at://did:plc:r/app.bsky.feed.post/root", "cid": "r"},
			"parent": {"uri": "at://did:plc:p/app.bsky.feed.post/parent", "cid": "p"}
		}
	}`)

	parsed, ok := ParseRecord(raw)
	require.True(t, ok)

	assert.Equal(t,
		"check this out https://arxiv.org/abs/2401.01234 ml science research at://did:plc:q/app.bsky.feed.post/1 https://doi.org/10.1000/xyz a title desc",
		parsed.SearchText)
	assert.Equal(t, "at://did:plc:r/app.bsky.feed.post/root", parsed.ReplyRoot)
	assert.Equal(t, "at://did:plc:p/app.bsky.feed.post/parent", parsed.ReplyParent)
}

func TestParseRecord_QuoteEmbed(t *testing.T) {
	parsed, ok := ParseRecord([]byte(`{"text":"","embed":{"$type":"app.bsky.embed.record","record":{"uri":"at://did:plc:q/app.bsky.feed.post/2","cid":"c"}}}`))
	require.True(t, ok)
	assert.Equal(t, "at://did:plc:q/app.bsky.feed.post/2", parsed.SearchText)
}

func TestParseRecord_Invalid(t *testing.T) {
	_, ok := ParseRecord(nil)
	assert.False(t, ok)

	_, ok = ParseRecord([]byte(`"just a string"`))
	assert.False(t, ok)
}
