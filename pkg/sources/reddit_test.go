package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wallwatch/wallwatch/pkg/wallconfig"
)

const listingBody = `{
	"data": {
		"children": [
			{"data": {
				"id": "abc123",
				"title": "Mountain vista",
				"over_18": false,
				"preview": {"images": [
					{"source": {"url": "https://i.redd.it/abc123.jpg", "width": 3840, "height": 1600}}
				]}
			}},
			{"data": {
				"id": "def456",
				"title": "Gallery post",
				"over_18": true,
				"preview": {"images": [
					{"source": {"url": "https://i.redd.it/def456a.png", "width": 2560, "height": 1440}},
					{"source": {"url": "https://i.redd.it/def456b.png", "width": 1920, "height": 1080}}
				]}
			}},
			{"data": {
				"id": "nopreview",
				"title": "Text post"
			}}
		]
	}
}`

func newRedditTestServer(t *testing.T, tokenCalls *atomic.Int64, lastPath *atomic.Value) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "bearer",
			"expires_in":   3600,
			"scope":        "*",
		})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer tok-1" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("raw_json") != "1" {
			http.Error(w, "raw_json required", http.StatusBadRequest)
			return
		}
		lastPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, server *httptest.Server) *RedditFetcher {
	t.Helper()
	fetcher, err := NewRedditFetcher(Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		UserAgent:    "wallwatch-test",
		Timeout:      5 * time.Second,
		BaseURL:      server.URL,
		AuthURL:      server.URL + "/api/v1/access_token",
	})
	if err != nil {
		t.Fatalf("NewRedditFetcher: %v", err)
	}
	return fetcher
}

func TestRedditFetcherSubredditListing(t *testing.T) {
	var tokenCalls atomic.Int64
	var lastPath atomic.Value
	server := newRedditTestServer(t, &tokenCalls, &lastPath)
	fetcher := newTestFetcher(t, server)

	posts, err := fetcher.Fetch(context.Background(), wallconfig.Source{
		Name: "wallpapers",
		Kind: wallconfig.SourceKindSubreddit,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got := lastPath.Load().(string); got != "/r/wallpapers/new" {
		t.Fatalf("listing path = %s", got)
	}
	// One candidate for abc123, two for the def456 gallery, none for the
	// preview-less text post.
	if len(posts) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(posts))
	}

	first := posts[0]
	if first.ID != "abc123" || first.Width != 3840 || first.Height != 1600 || first.NSFW {
		t.Fatalf("unexpected first candidate: %#v", first)
	}
	if first.Source != "wallpapers" {
		t.Fatalf("candidate source = %s", first.Source)
	}
	if posts[1].ID != "def456" || posts[2].ID != "def456_1" {
		t.Fatalf("gallery candidate ids = %s, %s", posts[1].ID, posts[2].ID)
	}
	if !posts[1].NSFW || !posts[2].NSFW {
		t.Fatalf("gallery candidates should inherit over_18")
	}
}

func TestRedditFetcherMultiListing(t *testing.T) {
	var tokenCalls atomic.Int64
	var lastPath atomic.Value
	server := newRedditTestServer(t, &tokenCalls, &lastPath)
	fetcher := newTestFetcher(t, server)

	_, err := fetcher.Fetch(context.Background(), wallconfig.Source{
		Name: "landscapes",
		Kind: wallconfig.SourceKindMulti,
		User: "naturefan",
		Feed: "scenic",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := lastPath.Load().(string); got != "/user/naturefan/m/scenic/new" {
		t.Fatalf("listing path = %s", got)
	}
}

func TestRedditFetcherReusesToken(t *testing.T) {
	var tokenCalls atomic.Int64
	var lastPath atomic.Value
	server := newRedditTestServer(t, &tokenCalls, &lastPath)
	fetcher := newTestFetcher(t, server)

	src := wallconfig.Source{Name: "wallpapers", Kind: wallconfig.SourceKindSubreddit}
	for i := 0; i < 2; i++ {
		if _, err := fetcher.Fetch(context.Background(), src); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Fatalf("expected a single token request, got %d", got)
	}
}

func TestRedditFetcherAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	fetcher, err := NewRedditFetcher(Options{
		ClientID:     "id",
		ClientSecret: "wrong",
		BaseURL:      server.URL,
		AuthURL:      server.URL + "/api/v1/access_token",
	})
	if err != nil {
		t.Fatalf("NewRedditFetcher: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), wallconfig.Source{
		Name: "wallpapers",
		Kind: wallconfig.SourceKindSubreddit,
	})
	if err == nil {
		t.Fatalf("expected auth error")
	}
}

func TestNewRedditFetcherRequiresCredentials(t *testing.T) {
	if _, err := NewRedditFetcher(Options{}); err == nil {
		t.Fatalf("expected error without credentials")
	}
}
