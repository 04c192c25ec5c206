package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Demo track data for guest play
var demoTrackPool = []struct {
	Name    string
	Artists []string
	Album   string
}{
	{"Blinding Lights", []string{"The Weeknd"}, "After Hours"},
	{"Shape of You", []string{"Ed Sheeran"}, "÷"},
	{"Someone Like You", []string{"Adele"}, "21"},
	{"Uptown Funk", []string{"Mark Ronson", "Bruno Mars"}, "Uptown Special"},
	{"Thinking Out Loud", []string{"Ed Sheeran"}, "x"},
	{"Levitating", []string{"Dua Lipa"}, "Future Nostalgia"},
	{"drivers license", []string{"Olivia Rodrigo"}, "SOUR"},
	{"Shallow", []string{"Lady Gaga", "Bradley Cooper"}, "A Star Is Born"},
	{"Watermelon Sugar", []string{"Harry Styles"}, "Fine Line"},
	{"Bad Guy", []string{"Billie Eilish"}, "WHEN WE ALL FALL ASLEEP, WHERE DO WE GO?"},
	{"Dance Monkey", []string{"Tones and I"}, "The Kids Are Coming"},
	{"Circles", []string{"Post Malone"}, "Hollywood's Bleeding"},
	{"Memories", []string{"Maroon 5"}, "Jordi"},
	{"Señorita", []string{"Shawn Mendes", "Camila Cabello"}, "Shawn Mendes"},
	{"Old Town Road", []string{"Lil Nas X", "Billy Ray Cyrus"}, "7"},
	{"Sunflower", []string{"Post Malone", "Swae Lee"}, "Spider-Man: Into the Spider-Verse"},
	{"Perfect", []string{"Ed Sheeran"}, "÷"},
	{"Havana", []string{"Camila Cabello", "Young Thug"}, "Camila"},
	{"Closer", []string{"The Chainsmokers", "Halsey"}, "Collage"},
	{"Despacito", []string{"Luis Fonsi", "Daddy Yankee"}, "VIDA"},
	{"Stay", []string{"The Kid LAROI", "Justin Bieber"}, "F*CK LOVE 3"},
	{"Good 4 U", []string{"Olivia Rodrigo"}, "SOUR"},
	{"Heat Waves", []string{"Glass Animals"}, "Dreamland"},
	{"Save Your Tears", []string{"The Weeknd"}, "After Hours"},
	{"Peaches", []string{"Justin Bieber", "Daniel Caesar"}, "Justice"},
	{"Industry Baby", []string{"Lil Nas X", "Jack Harlow"}, "MONTERO"},
	{"Positions", []string{"Ariana Grande"}, "Positions"},
	{"Therefore I Am", []string{"Billie Eilish"}, "Happier Than Ever"},
	{"Dynamite", []string{"BTS"}, "BE"},
	{"Easy On Me", []string{"Adele"}, "30"},
	{"Cold Heart", []string{"Elton John", "Dua Lipa"}, "The Lockdown Sessions"},
	{"Kiss Me More", []string{"Doja Cat", "SZA"}, "Planet Her"},
	{"Bad Habits", []string{"Ed Sheeran"}, "="},
	{"Stay With Me", []string{"Sam Smith"}, "In the Lonely Hour"},
	{"Love Yourself", []string{"Justin Bieber"}, "Purpose"},
}

var demoPlaylists = []struct {
	ID   string
	Name string
	Size int
}{
	{"demo_pop_hits", "Pop Hits", 20},
	{"demo_throwbacks", "Throwbacks", 15},
	{"demo_everything", "Everything", len(demoTrackPool)},
}

// DemoCatalog is an offline library for guest sessions. Its tracks carry no
// Spotify preview, so every preview comes from the preview resolver.
type DemoCatalog struct{}

var _ Catalog = DemoCatalog{}

func IsDemoPlaylist(id string) bool {
	return strings.HasPrefix(id, "demo_")
}

func (DemoCatalog) Playlists(_ context.Context, limit int) ([]Playlist, error) {
	playlists := make([]Playlist, 0, len(demoPlaylists))
	for i := range demoPlaylists {
		if limit > 0 && i >= limit {
			break
		}
		playlists = append(playlists, demoPlaylist(i))
	}
	return playlists, nil
}

func (DemoCatalog) Playlist(_ context.Context, id string) (*Playlist, error) {
	for i, p := range demoPlaylists {
		if p.ID == id {
			pl := demoPlaylist(i)
			return &pl, nil
		}
	}
	return nil, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
}

func (DemoCatalog) PlaylistTracks(_ context.Context, id string) ([]Track, error) {
	for i, p := range demoPlaylists {
		if p.ID == id {
			return generateDemoTracks(i, p.Size), nil
		}
	}
	return nil, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
}

func (DemoCatalog) Track(_ context.Context, id string) (*Track, error) {
	var idx int
	if _, err := fmt.Sscanf(id, "demo_track_%d", &idx); err != nil || idx < 0 || idx >= len(demoTrackPool) {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	t := demoTrack(idx)
	return &t, nil
}

func (DemoCatalog) AudioFeatures(context.Context, string) (*AudioFeatures, error) {
	return nil, nil
}

func demoPlaylist(i int) Playlist {
	p := demoPlaylists[i]
	return Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: "Demo playlist for guest games",
		Owner:       "NameThat",
		TracksTotal: p.Size,
	}
}

// generateDemoTracks picks size tracks from the pool; the seed keeps each
// playlist's contents stable between requests.
func generateDemoTracks(seed, size int) []Track {
	r := rand.New(rand.NewSource(int64((seed + 1) * 12345)))
	order := r.Perm(len(demoTrackPool))

	if size > len(order) {
		size = len(order)
	}
	tracks := make([]Track, size)
	for i := 0; i < size; i++ {
		tracks[i] = demoTrack(order[i])
	}
	return tracks
}

func demoTrack(idx int) Track {
	data := demoTrackPool[idx]
	return Track{
		ID:         fmt.Sprintf("demo_track_%d", idx),
		Name:       data.Name,
		Artists:    data.Artists,
		Album:      data.Album,
		DurationMS: 180000 + idx*1000,
		Popularity: 100 - idx,
	}
}
