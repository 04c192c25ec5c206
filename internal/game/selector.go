package game

import (
	"context"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"namethat/internal/catalog"
	"namethat/internal/preview"
)

var (
	ErrNoTracks  = errors.New("No tracks found in this playlist")
	ErrNoPreview = errors.New("No tracks with preview available in this playlist")
)

// PreviewResolver finds a preview clip for a track Spotify returned without
// one.
type PreviewResolver interface {
	Resolve(ctx context.Context, q preview.Query) (string, error)
}

// Selector picks a random playable track from a playlist.
type Selector struct {
	resolver   PreviewResolver
	maxLookups int
	shuffle    func([]catalog.Track)
	log        *zap.SugaredLogger
}

// NewSelector returns a Selector. maxLookups caps the fallback lookups per
// pick; 0 means no cap. resolver may be nil, in which case only tracks
// with a Spotify preview are playable.
func NewSelector(resolver PreviewResolver, maxLookups int, log *zap.SugaredLogger) *Selector {
	return &Selector{
		resolver:   resolver,
		maxLookups: maxLookups,
		shuffle: func(tracks []catalog.Track) {
			rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
		},
		log: log,
	}
}

// Pick shuffles tracks and returns the first one that has, or can be given,
// a preview URL. Tracks whose id is in exclude are never picked. The
// returned track carries the preview URL it will be played with.
func (s *Selector) Pick(ctx context.Context, tracks []catalog.Track, exclude map[string]bool) (*catalog.Track, error) {
	candidates := make([]catalog.Track, 0, len(tracks))
	valid := 0
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		valid++
		if !exclude[t.ID] {
			candidates = append(candidates, t)
		}
	}
	if valid == 0 {
		return nil, ErrNoTracks
	}

	s.shuffle(candidates)

	lookups := 0
	for i := range candidates {
		t := candidates[i]
		if t.HasPreview() {
			return &t, nil
		}
		if s.resolver == nil || (s.maxLookups > 0 && lookups >= s.maxLookups) {
			continue
		}

		lookups++
		url, err := s.resolver.Resolve(ctx, preview.Query{
			TrackID: t.ID,
			Name:    t.Name,
			Artist:  t.PrimaryArtist(),
		})
		if err == nil && url != "" {
			t.PreviewURL = url
			return &t, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil && !errors.Is(err, preview.ErrNotFound) {
			s.log.Debugw("preview lookup failed, trying next track", "track_id", t.ID, "error", err)
		}
	}

	return nil, ErrNoPreview
}
