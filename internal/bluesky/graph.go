package bluesky

import (
	"context"
	"net/url"
	"strconv"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// MaxFollowsPage is the largest page app.bsky.graph.getFollows serves.
const MaxFollowsPage = 100

type profileView struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type getFollowsResponse struct {
	Follows []profileView `json:"follows"`
	Cursor  string        `json:"cursor"`
}

// GetFollows returns one page of the accounts did follows. It implements
// domain.SocialGraph.
func (c *Client) GetFollows(ctx context.Context, did, cursor string, limit int) (*domain.Follows, error) {
	limit = min(max(limit, 1), MaxFollowsPage)

	params := url.Values{}
	params.Set("actor", did)
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp getFollowsResponse
	if err := c.get(ctx, "app.bsky.graph.getFollows", params, &resp); err != nil {
		return nil, err
	}

	follows := &domain.Follows{
		DIDs:   make([]string, 0, len(resp.Follows)),
		Cursor: resp.Cursor,
	}
	for _, f := range resp.Follows {
		follows.DIDs = append(follows.DIDs, f.DID)
	}
	return follows, nil
}
