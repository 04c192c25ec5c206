package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"namethat/internal/catalog"
	"namethat/internal/preview"
)

// playlistLimit is how many of the user's playlists are listed.
const playlistLimit = 50

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors(), s.rateLimit(), s.loadSession())

	// Basic routes
	r.GET("/", s.RootHandler)
	r.GET("/health", s.HealthCheckHandler)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")

	// Spotify OAuth routes
	api.GET("/login/", s.LoginHandler)
	api.GET("/callback/", s.CallbackHandler)
	api.POST("/guest/", s.GuestHandler)
	api.GET("/logout/", s.LogoutHandler)
	api.GET("/me/", s.MeHandler)

	// Session diagnostics
	api.GET("/test_session/", s.TestSessionHandler)
	api.GET("/debug_session/", s.DebugSessionHandler)

	api.GET("/get_preview/", s.GetPreviewHandler)

	authed := api.Group("", s.requireAuth())
	authed.GET("/playlists/", s.PlaylistsHandler)
	authed.GET("/playlist/:id/tracks/", s.PlaylistTracksHandler)
	authed.GET("/track/:id/", s.TrackHandler)
	authed.GET("/random_track_from_playlist/:id/", s.RandomTrackHandler)

	authed.POST("/games/", s.CreateGameHandler)
	authed.GET("/games/:id/", s.GetGameHandler)
	authed.POST("/games/:id/rounds/", s.NextRoundHandler)
	authed.POST("/games/:id/rounds/:number/guess/", s.SubmitGuessHandler)
	authed.POST("/games/:id/finish/", s.FinishGameHandler)
	authed.GET("/games/:id/ws", s.HandleWebSocket)
	authed.GET("/stats/", s.StatsHandler)

	return r
}

func (s *Server) RootHandler(c *gin.Context) {
	c.Redirect(http.StatusFound, "/api/playlists/")
}

func (s *Server) HealthCheckHandler(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	if s.rooms != nil {
		resp["metrics"] = s.rooms.GetMetrics()
	}
	c.JSON(http.StatusOK, resp)
}

// LoginHandler initiates the Spotify OAuth flow. The state is a one-time
// nonce kept in the caller's session.
func (s *Server) LoginHandler(c *gin.Context) {
	sess, err := s.ensureSession(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sess.OAuthState = uuid.NewString()
	if err := s.saveSession(c, sess); err != nil {
		s.respondError(c, err)
		return
	}

	s.log.Debugw("redirecting to spotify authorization", "session_id", sess.ID)
	c.Redirect(http.StatusTemporaryRedirect, s.spotify.AuthURL(sess.OAuthState))
}

// CallbackHandler handles the OAuth callback from Spotify
func (s *Server) CallbackHandler(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		s.log.Infow("spotify authorization denied", "reason", reason)
		c.Redirect(http.StatusTemporaryRedirect, s.frontendURL("auth=denied"))
		return
	}

	sess := currentSession(c)
	if sess == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No session found"})
		return
	}
	state := c.Query("state")
	if sess.OAuthState == "" || state != sess.OAuthState {
		s.log.Warnw("oauth state mismatch", "session_id", sess.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "State mismatch"})
		return
	}

	ctx := c.Request.Context()
	token, err := s.spotify.Exchange(ctx, c.Query("code"))
	if err != nil {
		s.log.Warnw("token exchange failed", "session_id", sess.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange code"})
		return
	}

	profile, err := s.spotify.Profile(ctx, token)
	if err != nil {
		s.log.Warnw("failed to fetch profile", "session_id", sess.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user profile"})
		return
	}

	sess.Reset()
	sess.Token = token
	sess.UserID = profile.ID
	sess.DisplayName = profile.DisplayName
	if err := s.rotateSession(c, sess); err != nil {
		s.respondError(c, err)
		return
	}

	s.log.Infow("user logged in", "user_id", profile.ID, "session_id", sess.ID)
	c.Redirect(http.StatusTemporaryRedirect, s.frontendURL("auth=success"))
}

// GuestHandler starts a guest session that plays the demo catalog.
func (s *Server) GuestHandler(c *gin.Context) {
	sess, err := s.ensureSession(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	sess.Reset()
	sess.IsGuest = true
	sess.UserID = "guest_" + suffix
	sess.DisplayName = "Guest " + strings.ToUpper(suffix[:4])
	if err := s.saveSession(c, sess); err != nil {
		s.respondError(c, err)
		return
	}

	s.log.Infow("guest session created", "user_id", sess.UserID)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user_id":      sess.UserID,
		"display_name": sess.DisplayName,
		"is_guest":     true,
	})
}

func (s *Server) LogoutHandler(c *gin.Context) {
	if sess := currentSession(c); sess != nil {
		if err := s.sessions.Delete(c.Request.Context(), sess.ID); err != nil {
			s.respondError(c, err)
			return
		}
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) MeHandler(c *gin.Context) {
	sess := currentSession(c)
	if sess == nil || !sess.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	var expiresAt *time.Time
	if sess.Token != nil && !sess.Token.Expiry.IsZero() {
		expiresAt = &sess.Token.Expiry
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user_id":       sess.UserID,
		"display_name":  sess.DisplayName,
		"expires_at":    expiresAt,
		"is_guest":      sess.IsGuest,
	})
}

func (s *Server) TestSessionHandler(c *gin.Context) {
	sess, err := s.ensureSession(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sess.Set("test_value", "hello_world")
	if err := s.saveSession(c, sess); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sess.ID,
		"session_data": sess.Values,
		"message":      "Session test successful",
	})
}

// DebugSessionHandler writes a value and reads it back through the store.
func (s *Server) DebugSessionHandler(c *gin.Context) {
	sess, err := s.ensureSession(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sess.Set("debug_test", "session_working")
	if err := s.saveSession(c, sess); err != nil {
		s.respondError(c, err)
		return
	}

	stored, err := s.sessions.Get(c.Request.Context(), sess.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	debugValue, ok := stored.Values["debug_test"]
	if !ok {
		debugValue = "not_found"
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       stored.ID,
		"debug_value":      debugValue,
		"all_session_data": stored.Values,
		"message":          "Debug session test",
	})
}

func (s *Server) GetPreviewHandler(c *gin.Context) {
	track := c.Query("track")
	artist := c.Query("artist")
	if track == "" || artist == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing track or artist"})
		return
	}

	url, err := s.previews.Resolve(c.Request.Context(), preview.Query{Name: track, Artist: artist})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"preview": url})
	case errors.Is(err, preview.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No preview found"})
	default:
		s.log.Warnw("preview lookup failed", "track", track, "artist", artist, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type playlistSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	TracksTotal int    `json:"tracks_total"`
	Image       string `json:"image"`
}

func (s *Server) PlaylistsHandler(c *gin.Context) {
	playlists, err := currentCatalog(c).Playlists(c.Request.Context(), playlistLimit)
	if err != nil {
		s.respondError(c, fmt.Errorf("get playlists: %w", err))
		return
	}

	out := make([]playlistSummary, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, playlistSummary{
			ID:          p.ID,
			Name:        p.Name,
			Owner:       p.Owner,
			TracksTotal: p.TracksTotal,
			Image:       p.Image,
		})
	}
	c.JSON(http.StatusOK, out)
}

// TrackInfo is the track shape the frontend consumes.
type TrackInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	Album      string `json:"album"`
	AlbumImage string `json:"album_image"`
	PreviewURL string `json:"preview_url"`
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	SpotifyURL string `json:"spotify_url"`
	HasPreview bool   `json:"has_preview"`
}

func newTrackInfo(t catalog.Track) TrackInfo {
	return TrackInfo{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    t.ArtistNames(),
		Album:      t.Album,
		AlbumImage: t.AlbumImage,
		PreviewURL: t.PreviewURL,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
		SpotifyURL: t.SpotifyURL,
		HasPreview: t.HasPreview(),
	}
}

func (s *Server) PlaylistTracksHandler(c *gin.Context) {
	ctx := c.Request.Context()
	cat := currentCatalog(c)
	id := c.Param("id")

	playlist, err := cat.Playlist(ctx, id)
	if err != nil {
		s.respondError(c, fmt.Errorf("get playlist tracks: %w", err))
		return
	}
	tracks, err := cat.PlaylistTracks(ctx, id)
	if err != nil {
		s.respondError(c, fmt.Errorf("get playlist tracks: %w", err))
		return
	}

	infos := make([]TrackInfo, 0, len(tracks))
	withPreview := 0
	for _, t := range tracks {
		info := newTrackInfo(t)
		if info.HasPreview {
			withPreview++
		}
		infos = append(infos, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"playlist": gin.H{
			"id":          id,
			"name":        playlist.Name,
			"description": playlist.Description,
			"owner":       playlist.Owner,
			"image":       playlist.Image,
		},
		"tracks":                 infos,
		"total_tracks":           len(infos),
		"tracks_with_preview":    withPreview,
		"tracks_without_preview": len(infos) - withPreview,
	})
}

func (s *Server) TrackHandler(c *gin.Context) {
	ctx := c.Request.Context()
	cat := currentCatalog(c)
	id := c.Param("id")

	track, err := cat.Track(ctx, id)
	if err != nil {
		s.respondError(c, fmt.Errorf("get track: %w", err))
		return
	}

	features, err := cat.AudioFeatures(ctx, id)
	if err != nil {
		s.log.Debugw("audio features unavailable", "track_id", id, "error", err)
		features = nil
	}

	c.JSON(http.StatusOK, struct {
		TrackInfo
		AudioFeatures *catalog.AudioFeatures `json:"audio_features"`
	}{newTrackInfo(*track), features})
}

// RandomTrackHandler returns a random track of the playlist that has a
// preview, looking one up for tracks Spotify returned without.
func (s *Server) RandomTrackHandler(c *gin.Context) {
	ctx := c.Request.Context()

	tracks, err := currentCatalog(c).PlaylistTracks(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, fmt.Errorf("get random track: %w", err))
		return
	}

	track, err := s.selector.Pick(ctx, tracks, nil)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTrackInfo(*track))
}

func (s *Server) frontendURL(query string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/?" + query
}
