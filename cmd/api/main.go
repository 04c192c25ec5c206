package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"namethat/internal/auth"
	"namethat/internal/config"
	"namethat/internal/game"
	"namethat/internal/logger"
	"namethat/internal/metrics"
	"namethat/internal/preview"
	"namethat/internal/server"
	"namethat/internal/session"
	"namethat/internal/store"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.IsDevelopment())
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	if !cfg.SpotifyConfigured() {
		log.Warn("SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET not set, only guest play will work")
	}

	m := metrics.NewMetrics("namethat")

	repo, sessions, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	cache := preview.NewCache(cfg.PreviewCacheTTL)
	resolver := preview.NewResolver(cache, m, log, previewFinders(ctx, cfg)...)
	selector := game.NewSelector(resolver, cfg.PreviewMaxLookups, log)

	rooms := game.NewRoomManager(log)
	defer rooms.Shutdown()

	games := game.NewService(repo, selector, game.Options{MaxRounds: cfg.GameMaxRounds}, log).
		WithEvents(m).
		WithBroadcaster(rooms)

	scheduler, err := games.StartScheduler(game.Housekeeping{
		Sessions:   sessions,
		Previews:   cache,
		StaleAfter: cfg.GameStaleAfter,
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Warnw("scheduler shutdown", "error", err)
		}
	}()

	spotifyAuth := auth.NewSpotifyAuthenticator(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRedirectURI)
	srv := server.New(cfg, server.Dependencies{
		Spotify:  server.NewSpotifyBackend(spotifyAuth),
		Sessions: sessions,
		Games:    games,
		Selector: selector,
		Previews: resolver,
		Rooms:    rooms,
		Metrics:  m,
	}, log).NewServer()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores picks postgres when DATABASE_URL is set and in-memory stores
// otherwise.
func openStores(cfg *config.Config, log *zap.SugaredLogger) (store.Repository, session.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, using in-memory stores")
		return store.NewMemoryStore(), session.NewMemoryStore(), nil
	}

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo, err := store.NewGormStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate game store: %w", err)
	}
	sessions, err := session.NewGormStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate session store: %w", err)
	}
	return repo, sessions, nil
}

// previewFinders lists the preview sources in the order they are tried.
// Sources that hit Spotify share one limiter.
func previewFinders(ctx context.Context, cfg *config.Config) []preview.Finder {
	limiter := rate.NewLimiter(rate.Every(cfg.PreviewRateInterval), 1)

	finders := []preview.Finder{
		preview.NewServiceFinder(cfg.PreviewServiceURL, cfg.PreviewServiceTimeout),
	}
	if cfg.PreviewEmbedScrape {
		finders = append(finders, preview.NewEmbedFinder("", limiter))
	}
	if cfg.SpotifyConfigured() {
		client := preview.NewClientCredentialsClient(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		finders = append(finders, preview.NewSpotifyFinder(client, cfg.Markets(), limiter))
	}
	return finders
}
