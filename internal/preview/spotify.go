package preview

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const searchMarket = "US"

// SpotifyFinder asks the Web API again with app credentials: a track often
// has a preview in another market, and a name/artist search can find a
// release of the same song that has one.
type SpotifyFinder struct {
	client  *spotify.Client
	markets []string
	limiter *rate.Limiter
}

// NewClientCredentialsClient builds a Spotify client authorized as the
// application rather than a user.
func NewClientCredentialsClient(ctx context.Context, clientID, clientSecret string) *spotify.Client {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return spotify.New(config.Client(ctx))
}

func NewSpotifyFinder(client *spotify.Client, markets []string, limiter *rate.Limiter) *SpotifyFinder {
	return &SpotifyFinder{
		client:  client,
		markets: markets,
		limiter: limiter,
	}
}

func (f *SpotifyFinder) Name() string { return "spotify" }

// Find looks the track up by id across the configured markets and falls back
// to a name search when none of them carries a preview.
func (f *SpotifyFinder) Find(ctx context.Context, q Query) (string, error) {
	if !IsSpotifyTrackID(q.TrackID) && q.Name == "" {
		return "", ErrUnsupported
	}
	if IsSpotifyTrackID(q.TrackID) {
		url, err := f.findInMarkets(ctx, q.TrackID)
		if q.Name == "" || !errors.Is(err, ErrNotFound) {
			return url, err
		}
	}
	return f.search(ctx, q)
}

func (f *SpotifyFinder) findInMarkets(ctx context.Context, trackID string) (string, error) {
	var lastErr error
	for _, market := range f.markets {
		if err := f.wait(ctx); err != nil {
			return "", err
		}

		track, err := f.client.GetTrack(ctx, spotify.ID(trackID), spotify.Market(market))
		if err != nil {
			var apiErr spotify.Error
			if errors.As(err, &apiErr) && apiErr.Status == 404 {
				return "", ErrNotFound
			}
			lastErr = err
			continue
		}
		if track.PreviewURL != "" {
			return track.PreviewURL, nil
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("market lookup: %w", lastErr)
	}
	return "", ErrNotFound
}

func (f *SpotifyFinder) search(ctx context.Context, q Query) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}

	query := q.Name
	if q.Artist != "" {
		query = fmt.Sprintf("track:%q artist:%q", q.Name, q.Artist)
	}

	result, err := f.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Market(searchMarket), spotify.Limit(5))
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	if result.Tracks == nil {
		return "", ErrNotFound
	}
	for _, track := range result.Tracks.Tracks {
		if track.PreviewURL != "" {
			return track.PreviewURL, nil
		}
	}
	return "", ErrNotFound
}

func (f *SpotifyFinder) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}
