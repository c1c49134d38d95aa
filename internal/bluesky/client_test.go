package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

func TestGetFollows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/app.bsky.graph.getFollows", r.URL.Path)
		assert.Equal(t, "did:plc:viewer", r.URL.Query().Get("actor"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		resp := map[string]any{
			"follows": []map[string]string{
				{"did": "did:plc:a", "handle": "a.test"},
				{"did": "did:plc:b", "handle": "b.test"},
			},
		}
		if r.URL.Query().Get("cursor") == "" {
			resp["cursor"] = "page2"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	page, err := client.GetFollows(context.Background(), "did:plc:viewer", "", 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"did:plc:a", "did:plc:b"}, page.DIDs)
	assert.Equal(t, "page2", page.Cursor)

	page, err = client.GetFollows(context.Background(), "did:plc:viewer", "page2", 100)
	require.NoError(t, err)
	assert.Empty(t, page.Cursor)
}

func TestGetFollows_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"InvalidRequest","message":"Profile not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFollows(context.Background(), "did:plc:gone", "", 10)

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Profile not found")
}

func TestPublishFeedGenerator(t *testing.T) {
	var put putRecordRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			json.NewEncoder(w).Encode(createSessionResponse{AccessJwt: "jwt", DID: "did:plc:owner"})
		case "/xrpc/com.atproto.repo.putRecord":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			w.Write([]byte(`{"uri":"at://did:plc:owner/app.bsky.feed.generator/papers"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	err := client.PublishFeedGenerator(ctx, "papers", FeedGeneratorRecord{})
	assert.ErrorIs(t, err, errNotAuthenticated)

	require.NoError(t, client.Login(ctx, "owner.test", "app-password"))
	require.NoError(t, client.PublishFeedGenerator(ctx, "papers", FeedGeneratorRecord{
		DID:         "did:web:feed.example.com",
		DisplayName: "Paper Skygest",
	}))

	assert.Equal(t, "did:plc:owner", put.Repo)
	assert.Equal(t, "app.bsky.feed.generator", put.Collection)
	assert.Equal(t, "papers", put.RKey)
	assert.Equal(t, "at://did:plc:owner/app.bsky.feed.generator/papers", client.GeneratorURI("papers"))
}
