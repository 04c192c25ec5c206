package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"namethat/internal/auth"
	"namethat/internal/catalog"
	"namethat/internal/config"
	"namethat/internal/game"
	"namethat/internal/metrics"
	"namethat/internal/preview"
	"namethat/internal/session"
)

// Spotify is everything the handlers need from Spotify for one user.
type Spotify interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// EnsureFresh refreshes token when it has expired; refreshed reports
	// whether the caller must persist the new token.
	EnsureFresh(ctx context.Context, token *oauth2.Token) (fresh *oauth2.Token, refreshed bool, err error)
	Profile(ctx context.Context, token *oauth2.Token) (*auth.Profile, error)
	Catalog(ctx context.Context, token *oauth2.Token) catalog.Catalog
}

// PreviewLookup resolves preview clips by track name and artist.
type PreviewLookup interface {
	Resolve(ctx context.Context, q preview.Query) (string, error)
}

type Dependencies struct {
	Spotify  Spotify
	Sessions session.Store
	Games    *game.Service
	Selector *game.Selector
	Previews PreviewLookup
	Rooms    *game.RoomManager
	Metrics  *metrics.Metrics
}

type Server struct {
	cfg      *config.Config
	spotify  Spotify
	sessions session.Store
	games    *game.Service
	selector *game.Selector
	previews PreviewLookup
	rooms    *game.RoomManager
	metrics  *metrics.Metrics
	limiter  *ClientLimiter
	log      *zap.SugaredLogger
}

func New(cfg *config.Config, deps Dependencies, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		spotify:  deps.Spotify,
		sessions: deps.Sessions,
		games:    deps.Games,
		selector: deps.Selector,
		previews: deps.Previews,
		rooms:    deps.Rooms,
		metrics:  deps.Metrics,
		limiter:  NewClientLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		log:      log,
	}
}

// NewServer wraps the routes in an http.Server listening on the configured
// port.
func (s *Server) NewServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SpotifyBackend serves the Spotify interface with the real Web API.
type SpotifyBackend struct {
	*auth.SpotifyAuthenticator
}

var _ Spotify = SpotifyBackend{}

func NewSpotifyBackend(a *auth.SpotifyAuthenticator) SpotifyBackend {
	return SpotifyBackend{SpotifyAuthenticator: a}
}

func (b SpotifyBackend) Profile(ctx context.Context, token *oauth2.Token) (*auth.Profile, error) {
	return auth.FetchProfile(ctx, b.NewClient(ctx, token))
}

func (b SpotifyBackend) Catalog(ctx context.Context, token *oauth2.Token) catalog.Catalog {
	return catalog.NewSpotifyCatalog(b.NewClient(ctx, token))
}
