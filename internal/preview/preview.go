// Package preview finds playable ~30s audio clips for tracks whose Spotify
// metadata carries no preview_url.
package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("no preview found")
	// ErrUnsupported is returned by a finder that cannot look up this kind
	// of query, e.g. a page scraper given no track id.
	ErrUnsupported = errors.New("query not supported by finder")
)

// Query identifies a track. TrackID is a Spotify track id when known; the
// name and artist serve finders that search.
type Query struct {
	TrackID string
	Name    string
	Artist  string
}

func (q Query) cacheKey() string {
	if q.TrackID != "" {
		return "id:" + q.TrackID
	}
	return "q:" + strings.ToLower(strings.TrimSpace(q.Name)) + "|" + strings.ToLower(strings.TrimSpace(q.Artist))
}

// Finder is one preview source. Find returns ErrNotFound when the source has
// no clip for q and ErrUnsupported when it cannot serve that kind of query.
type Finder interface {
	Name() string
	Find(ctx context.Context, q Query) (string, error)
}

// Observer receives one call per finder attempt.
type Observer interface {
	ObservePreviewLookup(finder, outcome string)
}

type Resolver struct {
	finders  []Finder
	cache    *Cache
	observer Observer
	log      *zap.SugaredLogger
}

func NewResolver(cache *Cache, observer Observer, log *zap.SugaredLogger, finders ...Finder) *Resolver {
	return &Resolver{
		finders:  finders,
		cache:    cache,
		observer: observer,
		log:      log,
	}
}

// Resolve asks each finder in order until one returns a URL. Misses are
// cached as well, unless a finder failed outright, so a flaky source gets
// another chance on the next request.
func (r *Resolver) Resolve(ctx context.Context, q Query) (string, error) {
	key := q.cacheKey()
	if r.cache != nil {
		if url, found := r.cache.Get(key); found {
			r.observe("cache", outcomeOf(url))
			if url == "" {
				return "", ErrNotFound
			}
			return url, nil
		}
	}

	var failures []error
	applicable := 0
	for _, f := range r.finders {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		url, err := f.Find(ctx, q)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		applicable++

		switch {
		case err == nil && url != "":
			r.observe(f.Name(), "hit")
			if r.cache != nil {
				r.cache.Set(key, url)
			}
			return url, nil
		case err == nil || errors.Is(err, ErrNotFound):
			r.observe(f.Name(), "miss")
		default:
			r.observe(f.Name(), "error")
			r.log.Warnw("preview finder failed", "finder", f.Name(), "track", q.Name, "artist", q.Artist, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", f.Name(), err))
		}
	}

	if len(failures) > 0 && len(failures) == applicable {
		return "", fmt.Errorf("preview lookup failed: %w", errors.Join(failures...))
	}
	if len(failures) == 0 && r.cache != nil {
		r.cache.Set(key, "")
	}
	return "", ErrNotFound
}

func (r *Resolver) observe(finder, outcome string) {
	if r.observer != nil {
		r.observer.ObservePreviewLookup(finder, outcome)
	}
}

func outcomeOf(url string) string {
	if url == "" {
		return "miss"
	}
	return "hit"
}
