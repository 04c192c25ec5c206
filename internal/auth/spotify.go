package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// expirySkew refreshes tokens slightly before Spotify would reject them.
const expirySkew = 30 * time.Second

var (
	ErrNoToken        = errors.New("not authenticated")
	ErrNoRefreshToken = errors.New("token expired and no refresh token available")
)

// Scopes requested at login: profile, playlists (incl. private and
// collaborative) and the user's library.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserLibraryRead,
}

// Profile is the subset of the Spotify user we keep in the session.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// SpotifyAuthenticator handles Spotify OAuth
type SpotifyAuthenticator struct {
	auth *spotifyauth.Authenticator
	now  func() time.Time
}

// NewSpotifyAuthenticator creates a new authenticator
func NewSpotifyAuthenticator(clientID, clientSecret, redirectURI string) *SpotifyAuthenticator {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(Scopes...),
	)

	return &SpotifyAuthenticator{
		auth: auth,
		now:  time.Now,
	}
}

// AuthURL returns the Spotify authorization URL
func (sa *SpotifyAuthenticator) AuthURL(state string) string {
	return sa.auth.AuthURL(state)
}

// Exchange exchanges authorization code for access token
func (sa *SpotifyAuthenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	token, err := sa.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// EnsureFresh returns token unchanged while it is valid and a refreshed token
// once it has expired. refreshed tells the caller to persist the new token.
func (sa *SpotifyAuthenticator) EnsureFresh(ctx context.Context, token *oauth2.Token) (fresh *oauth2.Token, refreshed bool, err error) {
	if token == nil || token.AccessToken == "" {
		return nil, false, ErrNoToken
	}
	if !Expired(token, sa.now()) {
		return token, false, nil
	}
	if token.RefreshToken == "" {
		return nil, false, ErrNoRefreshToken
	}

	fresh, err = sa.auth.RefreshToken(ctx, token)
	if err != nil {
		return nil, false, fmt.Errorf("refresh access token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, true, nil
}

// HTTPClient returns an http.Client authorized with token.
func (sa *SpotifyAuthenticator) HTTPClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return sa.auth.Client(ctx, token)
}

// NewClient creates a new Spotify client with the given token
func (sa *SpotifyAuthenticator) NewClient(ctx context.Context, token *oauth2.Token) *spotify.Client {
	return spotify.New(sa.HTTPClient(ctx, token))
}

// FetchProfile retrieves the current user's profile information
func FetchProfile(ctx context.Context, client *spotify.Client) (*Profile, error) {
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	profile := &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
	if len(user.Images) > 0 {
		profile.ImageURL = user.Images[0].URL
	}
	if profile.DisplayName == "" {
		profile.DisplayName = "Player " + user.ID[:min(4, len(user.ID))]
	}

	return profile, nil
}

// Expired reports whether token must be refreshed at now. Tokens without an
// expiry never expire.
func Expired(token *oauth2.Token, now time.Time) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(token.Expiry)
}
