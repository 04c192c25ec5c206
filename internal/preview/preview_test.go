package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

const validTrackID = "4uLU6hMCjMI75M1A2tKUQC"

type FakeFinder struct {
	name     string
	FindFunc func(ctx context.Context, q Query) (string, error)
	calls    int
}

func (f *FakeFinder) Name() string { return f.name }

func (f *FakeFinder) Find(ctx context.Context, q Query) (string, error) {
	f.calls++
	if f.FindFunc != nil {
		return f.FindFunc(ctx, q)
	}
	return "", ErrNotFound
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObservePreviewLookup(finder, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, finder+":"+outcome)
}

func TestResolverFallsThroughFinders(t *testing.T) {
	first := &FakeFinder{name: "first"}
	second := &FakeFinder{name: "second", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "https://p.scdn.co/mp3-preview/second", nil
	}}
	obs := &recordingObserver{}
	r := NewResolver(NewCache(time.Hour), obs, zap.NewNop().Sugar(), first, second)

	url, err := r.Resolve(context.Background(), Query{TrackID: validTrackID, Name: "x", Artist: "y"})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/second", url)
	assert.Equal(t, []string{"first:miss", "second:hit"}, obs.events)

	// Served from cache the second time.
	url, err = r.Resolve(context.Background(), Query{TrackID: validTrackID})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/second", url)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestResolverCachesMisses(t *testing.T) {
	finder := &FakeFinder{name: "only"}
	r := NewResolver(NewCache(time.Hour), nil, zap.NewNop().Sugar(), finder)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), Query{Name: "Song", Artist: "Band"})
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, finder.calls)
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	finder := &FakeFinder{name: "flaky", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "", errors.New("connection refused")
	}}
	r := NewResolver(NewCache(time.Hour), nil, zap.NewNop().Sugar(), finder)

	_, err := r.Resolve(context.Background(), Query{Name: "Song", Artist: "Band"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), Query{Name: "Song", Artist: "Band"})
	require.Error(t, err)
	assert.Equal(t, 2, finder.calls)
}

func TestResolverPartialFailureIsNotFound(t *testing.T) {
	broken := &FakeFinder{name: "broken", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "", errors.New("boom")
	}}
	empty := &FakeFinder{name: "empty"}
	r := NewResolver(nil, nil, zap.NewNop().Sugar(), broken, empty)

	_, err := r.Resolve(context.Background(), Query{Name: "Song", Artist: "Band"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolverSkipsUnsupportedFinders(t *testing.T) {
	unsupported := &FakeFinder{name: "by-id", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "", ErrUnsupported
	}}
	broken := &FakeFinder{name: "broken", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "", errors.New("boom")
	}}
	obs := &recordingObserver{}
	cache := NewCache(time.Hour)
	r := NewResolver(cache, obs, zap.NewNop().Sugar(), unsupported, broken)

	_, err := r.Resolve(context.Background(), Query{Name: "Song", Artist: "Band"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"broken:error"}, obs.events)
	assert.Equal(t, 0, cache.Len())
}

func TestResolverNoApplicableFinder(t *testing.T) {
	unsupported := &FakeFinder{name: "by-id", FindFunc: func(ctx context.Context, q Query) (string, error) {
		return "", ErrUnsupported
	}}
	r := NewResolver(nil, nil, zap.NewNop().Sugar(), unsupported)

	_, err := r.Resolve(context.Background(), Query{Name: "Song"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolverServiceDownWithoutTrackID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	r := NewResolver(NewCache(time.Hour), nil, zap.NewNop().Sugar(),
		NewServiceFinder(srv.URL, time.Second),
		NewEmbedFinder("", nil),
	)

	_, err := r.Resolve(context.Background(), Query{Name: "Heat Waves", Artist: "Glass Animals"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Hour)
	c.now = func() time.Time { return now }

	c.Set("a", "url-a")
	c.Set("b", "")

	url, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "url-a", url)

	url, ok = c.Get("b")
	assert.True(t, ok, "misses are cached too")
	assert.Empty(t, url)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("a")
	assert.False(t, ok)

	assert.Equal(t, 2, c.Prune())
	assert.Equal(t, 0, c.Len())
}

func TestServiceFinder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preview", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("track") {
		case "Found":
			assert.Equal(t, "Artist", r.URL.Query().Get("artist"))
			fmt.Fprint(w, `{"preview":"https://p.scdn.co/mp3-preview/found"}`)
		case "Missing":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"No preview URL found."}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"upstream exploded"}`)
		}
	}))
	defer srv.Close()

	f := NewServiceFinder(srv.URL+"/", time.Second)
	ctx := context.Background()

	url, err := f.Find(ctx, Query{Name: "Found", Artist: "Artist"})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/found", url)

	_, err = f.Find(ctx, Query{Name: "Missing", Artist: "Artist"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Find(ctx, Query{Name: "Broken", Artist: "Artist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")

	_, err = f.Find(ctx, Query{Name: "No artist"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEmbedFinder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+validTrackID {
			fmt.Fprint(w, `<html><script>{"audioPreview":{"url":"https://p.scdn.co/mp3-preview/3eb16018c2a700240e9dfb8817b6f2d041f15eb1?cid=abc"}}</script></html>`)
			return
		}
		fmt.Fprint(w, `<html>nothing here</html>`)
	}))
	defer srv.Close()

	f := NewEmbedFinder(srv.URL, nil)
	ctx := context.Background()

	url, err := f.Find(ctx, Query{TrackID: validTrackID})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/3eb16018c2a700240e9dfb8817b6f2d041f15eb1", url)

	_, err = f.Find(ctx, Query{TrackID: "0000000000000000000000"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Find(ctx, Query{TrackID: "demo_track_1"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSpotifyFinderMarkets(t *testing.T) {
	var markets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		market := r.URL.Query().Get("market")
		markets = append(markets, market)
		w.Header().Set("Content-Type", "application/json")
		preview := ""
		if market == "GB" {
			preview = "https://p.scdn.co/mp3-preview/gb"
		}
		fmt.Fprintf(w, `{"id":%q,"name":"Song","preview_url":%q}`, validTrackID, preview)
	}))
	defer srv.Close()

	client := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	f := NewSpotifyFinder(client, []string{"US", "GB", "DE"}, nil)

	url, err := f.Find(context.Background(), Query{TrackID: validTrackID})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/gb", url)
	assert.Equal(t, []string{"US", "GB"}, markets)
}

func TestSpotifyFinderSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `track:"Song" artist:"Band"`, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tracks":{"items":[{"id":"a","name":"Song"},{"id":"b","name":"Song","preview_url":"https://p.scdn.co/mp3-preview/b"}]}}`)
	}))
	defer srv.Close()

	client := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	f := NewSpotifyFinder(client, nil, nil)

	url, err := f.Find(context.Background(), Query{Name: "Song", Artist: "Band"})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/b", url)
}

func TestSpotifyFinderSearchesAfterMarketMiss(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/search" {
			fmt.Fprint(w, `{"tracks":{"items":[{"id":"c","name":"Song","preview_url":"https://p.scdn.co/mp3-preview/c"}]}}`)
			return
		}
		fmt.Fprintf(w, `{"id":%q,"name":"Song","preview_url":""}`, validTrackID)
	}))
	defer srv.Close()

	client := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	f := NewSpotifyFinder(client, []string{"US"}, nil)

	url, err := f.Find(context.Background(), Query{TrackID: validTrackID, Name: "Song", Artist: "Band"})
	require.NoError(t, err)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/c", url)
	assert.Equal(t, []string{"/tracks/" + validTrackID, "/search"}, paths)

	paths = nil
	_, err = f.Find(context.Background(), Query{TrackID: validTrackID})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"/tracks/" + validTrackID}, paths)

	_, err = f.Find(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrUnsupported)
}
