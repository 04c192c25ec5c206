package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	playlistPageSize  = 100
	maxPlaylistTracks = 1000
)

var tracer = otel.Tracer("namethat/catalog")

// SpotifyCatalog reads from the Spotify Web API on behalf of one user.
type SpotifyCatalog struct {
	client *spotify.Client
}

var _ Catalog = (*SpotifyCatalog)(nil)

func NewSpotifyCatalog(client *spotify.Client) *SpotifyCatalog {
	return &SpotifyCatalog{client: client}
}

func (s *SpotifyCatalog) Playlists(ctx context.Context, limit int) (_ []Playlist, err error) {
	ctx, span := tracer.Start(ctx, "spotify.CurrentUsersPlaylists")
	defer func() { endSpan(span, err) }()

	page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(page.Playlists))
	for _, p := range page.Playlists {
		playlists = append(playlists, convertSimplePlaylist(p))
	}
	return playlists, nil
}

func (s *SpotifyCatalog) Playlist(ctx context.Context, id string) (_ *Playlist, err error) {
	ctx, span := tracer.Start(ctx, "spotify.GetPlaylist", trace.WithAttributes(attribute.String("playlist.id", id)))
	defer func() { endSpan(span, err) }()

	full, err := s.client.GetPlaylist(ctx, spotify.ID(id),
		spotify.Fields("id,name,description,images,owner(display_name),tracks(total)"))
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", id, err)
	}

	p := convertSimplePlaylist(full.SimplePlaylist)
	p.ID = id
	p.TracksTotal = int(full.Tracks.Total)
	return &p, nil
}

func (s *SpotifyCatalog) PlaylistTracks(ctx context.Context, id string) (_ []Track, err error) {
	ctx, span := tracer.Start(ctx, "spotify.GetPlaylistItems", trace.WithAttributes(attribute.String("playlist.id", id)))
	defer func() { endSpan(span, err) }()

	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, fmt.Errorf("get playlist tracks %s: %w", id, err)
	}

	tracks := make([]Track, 0, len(page.Items))
	for {
		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			tracks = append(tracks, ConvertFullTrack(*item.Track.Track))
		}
		if len(tracks) >= maxPlaylistTracks {
			break
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("get playlist tracks %s: %w", id, err)
		}
	}

	span.SetAttributes(attribute.Int("tracks.count", len(tracks)))
	return tracks, nil
}

func (s *SpotifyCatalog) Track(ctx context.Context, id string) (_ *Track, err error) {
	ctx, span := tracer.Start(ctx, "spotify.GetTrack", trace.WithAttributes(attribute.String("track.id", id)))
	defer func() { endSpan(span, err) }()

	full, err := s.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("get track %s: %w", id, err)
	}
	t := ConvertFullTrack(*full)
	return &t, nil
}

func (s *SpotifyCatalog) AudioFeatures(ctx context.Context, id string) (_ *AudioFeatures, err error) {
	ctx, span := tracer.Start(ctx, "spotify.GetAudioFeatures", trace.WithAttributes(attribute.String("track.id", id)))
	defer func() { endSpan(span, err) }()

	features, err := s.client.GetAudioFeatures(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("get audio features %s: %w", id, err)
	}
	if len(features) == 0 || features[0] == nil {
		return nil, nil
	}

	f := features[0]
	return &AudioFeatures{
		Tempo:        float64(f.Tempo),
		Key:          int(f.Key),
		Mode:         int(f.Mode),
		Danceability: float64(f.Danceability),
		Energy:       float64(f.Energy),
		Valence:      float64(f.Valence),
	}, nil
}

// ConvertFullTrack reshapes a Spotify track into the catalog's Track.
func ConvertFullTrack(track spotify.FullTrack) Track {
	return Track{
		ID:         string(track.ID),
		Name:       track.Name,
		Artists:    getArtistNames(track.Artists),
		Album:      track.Album.Name,
		AlbumImage: getAlbumImage(track.Album),
		PreviewURL: track.PreviewURL,
		DurationMS: int(track.Duration),
		Popularity: int(track.Popularity),
		SpotifyURL: track.ExternalURLs["spotify"],
	}
}

func convertSimplePlaylist(p spotify.SimplePlaylist) Playlist {
	playlist := Playlist{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TracksTotal: int(p.Tracks.Total),
	}
	if len(p.Images) > 0 {
		playlist.Image = p.Images[0].URL
	}
	return playlist
}

func getArtistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, artist := range artists {
		names[i] = artist.Name
	}
	return names
}

func getAlbumImage(album spotify.SimpleAlbum) string {
	if len(album.Images) > 0 {
		return album.Images[0].URL
	}
	return ""
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
