// Package taikowiki fetches the community song list that backs the catalog.
package taikowiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultSongListURL = "https://taiko.wiki/api/v1/song/all"

// ErrUnavailable marks transient upstream failures. Callers fall back to the
// local catalog copy; the error never reaches chat users.
var ErrUnavailable = errors.New("taiko.wiki unavailable")

// maxBodySize caps how much of a response we are willing to buffer. The full
// song list runs a few MB; anything past this is a broken upstream.
const maxBodySize = 64 << 20

type Client struct {
	songListURL string
	httpClient  *http.Client
}

func NewClient(songListURL string) *Client {
	if songListURL == "" {
		songListURL = DefaultSongListURL
	}
	return &Client{
		songListURL: songListURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchSongs returns the raw JSON song list. The body is returned unparsed
// so the caller can both normalize it and persist it verbatim as the local
// fallback copy.
func (c *Client) FetchSongs(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.songListURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	return body, nil
}
