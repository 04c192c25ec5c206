package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ServiceFinder queries the standalone preview lookup service:
//
//	GET {base}/preview?track=<name>&artist=<artist>  ->  {"preview": "<url>"}
type ServiceFinder struct {
	baseURL string
	client  *http.Client
}

func NewServiceFinder(baseURL string, timeout time.Duration) *ServiceFinder {
	return &ServiceFinder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *ServiceFinder) Name() string { return "service" }

type serviceResponse struct {
	Preview string `json:"preview"`
	Error   string `json:"error"`
}

func (f *ServiceFinder) Find(ctx context.Context, q Query) (string, error) {
	if q.Name == "" || q.Artist == "" {
		return "", ErrUnsupported
	}

	params := url.Values{}
	params.Set("track", q.Name)
	params.Set("artist", q.Artist)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/preview?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build preview service request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("preview service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body serviceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode preview service response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && body.Preview != "":
		return body.Preview, nil
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	default:
		msg := body.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("preview service returned %d: %s", resp.StatusCode, msg)
	}
}
