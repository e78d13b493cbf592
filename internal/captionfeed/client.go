// Package captionfeed is the narrow client for the external
// transcript-fetch service: given a subject id and a language, it
// returns ordered text segments.
package captionfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher is the contract the resolver consumes.
type Fetcher interface {
	Fetch(ctx context.Context, videoID, lang string) ([]string, error)
}

// Client talks to a timedtext-style endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// timedtext json3 document: a flat event list whose segments carry the
// cue text.
type timedtextDoc struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch returns the non-empty cue segments in order. An empty slice
// with nil error means the service had nothing for this language.
func (c *Client) Fetch(ctx context.Context, videoID, lang string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/timedtext?v=%s&lang=%s&fmt=json3",
		c.baseURL, url.QueryEscape(videoID), url.QueryEscape(lang))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build transcript request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read transcript response: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var doc timedtextDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode transcript response: %w", err)
	}

	var segments []string
	for _, ev := range doc.Events {
		for _, seg := range ev.Segs {
			if seg.UTF8 != "" && seg.UTF8 != "\n" {
				segments = append(segments, seg.UTF8)
			}
		}
	}
	log.WithFields(log.Fields{"videoId": videoID, "segments": len(segments)}).
		Debug("Caption feed fetched")
	return segments, nil
}

var _ Fetcher = (*Client)(nil)
