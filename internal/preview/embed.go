package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultEmbedURL = "https://open.spotify.com/embed/track/"

var (
	previewPattern = regexp.MustCompile(`https://p\.scdn\.co/mp3-preview/[A-Za-z0-9_\-\.%]+`)
	trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
)

// EmbedFinder scrapes the public embed player page of a track, which still
// references the preview clip when the Web API omits it.
type EmbedFinder struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewEmbedFinder throttles page fetches through limiter so the scraper does
// not get the server's IP banned. An empty baseURL targets open.spotify.com.
func NewEmbedFinder(baseURL string, limiter *rate.Limiter) *EmbedFinder {
	if baseURL == "" {
		baseURL = defaultEmbedURL
	}
	return &EmbedFinder{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
	}
}

func (f *EmbedFinder) Name() string { return "embed" }

func (f *EmbedFinder) Find(ctx context.Context, q Query) (string, error) {
	if !IsSpotifyTrackID(q.TrackID) {
		return "", ErrUnsupported
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	page, err := f.scrape(ctx, q.TrackID)
	if err != nil {
		return "", err
	}
	if url := extractPreviewURL(page); url != "" {
		return url, nil
	}
	return "", ErrNotFound
}

// scrape makes the HTTP request for the embed page
func (f *EmbedFinder) scrape(ctx context.Context, trackID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+trackID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic a real browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch embed page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return string(body), nil
}

// extractPreviewURL returns the first preview clip referenced by the page.
func extractPreviewURL(htmlContent string) string {
	return previewPattern.FindString(htmlContent)
}

// IsSpotifyTrackID reports whether id looks like a base62 Spotify track id.
func IsSpotifyTrackID(id string) bool {
	return trackIDPattern.MatchString(id)
}
