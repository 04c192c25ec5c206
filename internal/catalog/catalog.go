// Package catalog is the music metadata the game plays from. Handlers only
// see the Catalog interface; the Spotify Web API and the offline demo
// library both implement it.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
)

var ErrNotFound = errors.New("not found")

type Catalog interface {
	// Playlists lists the current user's playlists.
	Playlists(ctx context.Context, limit int) ([]Playlist, error)
	Playlist(ctx context.Context, id string) (*Playlist, error)
	// PlaylistTracks returns the playlist's tracks in order, skipping
	// null entries (removed tracks, local files, podcast episodes).
	PlaylistTracks(ctx context.Context, id string) ([]Track, error)
	Track(ctx context.Context, id string) (*Track, error)
	// AudioFeatures returns nil without error when Spotify has none.
	AudioFeatures(ctx context.Context, id string) (*AudioFeatures, error)
}

type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Image       string `json:"image,omitempty"`
	TracksTotal int    `json:"tracks_total"`
}

type Track struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	AlbumImage string
	PreviewURL string
	DurationMS int
	Popularity int
	SpotifyURL string
}

func (t Track) HasPreview() bool {
	return t.PreviewURL != ""
}

// ArtistNames joins all artists the way the frontend displays them.
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// PrimaryArtist is the first credited artist, used for preview lookups.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

type AudioFeatures struct {
	Tempo        float64 `json:"tempo"`
	Key          int     `json:"key"`
	Mode         int     `json:"mode"`
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
}

// StatusCode extracts the HTTP status from a catalog error, or 0 when the
// error did not come from the upstream API.
func StatusCode(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return 0
}
