package game

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"namethat/internal/catalog"
	"namethat/internal/preview"
)

type FakeResolver struct {
	ResolveFunc func(ctx context.Context, q preview.Query) (string, error)
	Calls       []preview.Query
}

func (f *FakeResolver) Resolve(ctx context.Context, q preview.Query) (string, error) {
	f.Calls = append(f.Calls, q)
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, q)
	}
	return "", preview.ErrNotFound
}

func fakeTrack(id, previewURL string) catalog.Track {
	return catalog.Track{
		ID:         id,
		Name:       gofakeit.SongName(),
		Artists:    []string{gofakeit.SongArtist()},
		PreviewURL: previewURL,
	}
}

// keepOrder makes the selector scan in the given order.
func keepOrder(s *Selector) *Selector {
	s.shuffle = func([]catalog.Track) {}
	return s
}

func TestPickPrefersSpotifyPreviewWithoutLookups(t *testing.T) {
	resolver := &FakeResolver{}
	s := keepOrder(NewSelector(resolver, 0, zap.NewNop().Sugar()))

	tracks := []catalog.Track{
		fakeTrack("a", "https://p.scdn.co/mp3-preview/a"),
		fakeTrack("b", ""),
	}
	got, err := s.Pick(context.Background(), tracks, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Empty(t, resolver.Calls)
}

func TestPickFallsBackPerCandidate(t *testing.T) {
	resolver := &FakeResolver{
		ResolveFunc: func(_ context.Context, q preview.Query) (string, error) {
			switch q.TrackID {
			case "a":
				return "", preview.ErrNotFound
			case "b":
				return "", errors.New("preview service down")
			default:
				return "https://example.test/" + q.TrackID + ".mp3", nil
			}
		},
	}
	s := keepOrder(NewSelector(resolver, 0, zap.NewNop().Sugar()))

	tracks := []catalog.Track{fakeTrack("a", ""), fakeTrack("b", ""), fakeTrack("c", "")}
	got, err := s.Pick(context.Background(), tracks, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", got.ID)
	assert.Equal(t, "https://example.test/c.mp3", got.PreviewURL)
	require.Len(t, resolver.Calls, 3)
	assert.Equal(t, tracks[0].Name, resolver.Calls[0].Name)
	assert.Equal(t, tracks[0].Artists[0], resolver.Calls[0].Artist)
	assert.Empty(t, tracks[2].PreviewURL, "the caller's slice is not modified")
}

func TestPickSkipsNullAndExcludedTracks(t *testing.T) {
	s := keepOrder(NewSelector(nil, 0, zap.NewNop().Sugar()))

	tracks := []catalog.Track{
		{},
		fakeTrack("used", "https://p.scdn.co/mp3-preview/used"),
		fakeTrack("fresh", "https://p.scdn.co/mp3-preview/fresh"),
	}
	got, err := s.Pick(context.Background(), tracks, map[string]bool{"used": true})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.ID)
}

func TestPickErrors(t *testing.T) {
	s := keepOrder(NewSelector(&FakeResolver{}, 0, zap.NewNop().Sugar()))

	_, err := s.Pick(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoTracks)

	_, err = s.Pick(context.Background(), []catalog.Track{{}, {}}, nil)
	assert.ErrorIs(t, err, ErrNoTracks)

	_, err = s.Pick(context.Background(), []catalog.Track{fakeTrack("a", ""), fakeTrack("b", "")}, nil)
	assert.ErrorIs(t, err, ErrNoPreview)

	// Every track already played.
	_, err = s.Pick(context.Background(), []catalog.Track{fakeTrack("a", "https://x")}, map[string]bool{"a": true})
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestPickLookupCap(t *testing.T) {
	resolver := &FakeResolver{}
	s := keepOrder(NewSelector(resolver, 2, zap.NewNop().Sugar()))

	tracks := []catalog.Track{
		fakeTrack("a", ""),
		fakeTrack("b", ""),
		fakeTrack("c", ""),
		fakeTrack("d", "https://p.scdn.co/mp3-preview/d"),
	}
	got, err := s.Pick(context.Background(), tracks, nil)
	require.NoError(t, err)
	assert.Equal(t, "d", got.ID)
	assert.Len(t, resolver.Calls, 2)
}

func TestPickStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := &FakeResolver{
		ResolveFunc: func(context.Context, preview.Query) (string, error) {
			cancel()
			return "", context.Canceled
		},
	}
	s := keepOrder(NewSelector(resolver, 0, zap.NewNop().Sugar()))

	_, err := s.Pick(ctx, []catalog.Track{fakeTrack("a", ""), fakeTrack("b", "")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, resolver.Calls, 1)
}
