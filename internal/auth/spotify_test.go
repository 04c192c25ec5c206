package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthURLCarriesStateAndScopes(t *testing.T) {
	sa := NewSpotifyAuthenticator("client-123", "secret", "http://localhost:8000/api/callback/")

	raw := sa.AuthURL("state-abc")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.spotify.com", u.Host)
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "http://localhost:8000/api/callback/", q.Get("redirect_uri"))
	for _, scope := range Scopes {
		assert.Contains(t, strings.Fields(q.Get("scope")), scope)
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"no expiry", time.Time{}, false},
		{"valid for an hour", now.Add(time.Hour), false},
		{"inside skew window", now.Add(10 * time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &oauth2.Token{AccessToken: "a", Expiry: tt.expiry}
			assert.Equal(t, tt.want, Expired(token, now))
		})
	}
}

func TestEnsureFreshKeepsValidToken(t *testing.T) {
	sa := NewSpotifyAuthenticator("id", "secret", "http://localhost/cb")
	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}

	fresh, refreshed, err := sa.EnsureFresh(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Same(t, token, fresh)
}

// redirectTransport sends every request to the test server whatever host it
// was addressed to.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestEnsureFreshRefreshesExpiredToken(t *testing.T) {
	var grants []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/api/token", r.URL.Path)
		grants = append(grants, r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client := &http.Client{Transport: redirectTransport{target: target}}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	sa := NewSpotifyAuthenticator("id", "secret", "http://localhost/cb")
	expired := &oauth2.Token{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	}

	fresh, refreshed, err := sa.EnsureFresh(ctx, expired)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "new-access", fresh.AccessToken)
	assert.Equal(t, "old-refresh", fresh.RefreshToken)
	assert.True(t, fresh.Expiry.After(time.Now()))
	assert.Equal(t, []string{"refresh_token"}, grants)
}

func TestEnsureFreshReportsRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
	}))
	defer srv.Close()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: redirectTransport{target: target}})

	sa := NewSpotifyAuthenticator("id", "secret", "http://localhost/cb")
	expired := &oauth2.Token{AccessToken: "a", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Minute)}

	_, refreshed, err := sa.EnsureFresh(ctx, expired)
	require.Error(t, err)
	assert.False(t, refreshed)
	assert.Contains(t, err.Error(), "refresh access token")
}

func TestEnsureFreshRejectsMissingTokens(t *testing.T) {
	sa := NewSpotifyAuthenticator("id", "secret", "http://localhost/cb")

	_, _, err := sa.EnsureFresh(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoToken)

	expired := &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)}
	_, _, err = sa.EnsureFresh(context.Background(), expired)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestExchangeRequiresCode(t *testing.T) {
	sa := NewSpotifyAuthenticator("id", "secret", "http://localhost/cb")
	_, err := sa.Exchange(context.Background(), "")
	assert.Error(t, err)
}
