// Package media queries the extraction tool for subject metadata,
// including the embedded caption/subtitle track listings the resolver
// works from.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/retry"
	"tubescribe/internal/ytdlp"
)

// Track is one caption/subtitle variant as listed by the tool.
type Track struct {
	URL  string `json:"url"`
	Ext  string `json:"ext"`
	Name string `json:"name"`
}

// Info is the subset of tool metadata the engine needs, plus the raw
// document for the full info projection.
type Info struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Language          string             `json:"language"`
	Channel           string             `json:"channel"`
	ChannelID         string             `json:"channel_id"`
	UploadDate        string             `json:"upload_date"`
	Duration          float64            `json:"duration"`
	Subtitles         map[string][]Track `json:"subtitles"`
	AutomaticCaptions map[string][]Track `json:"automatic_captions"`

	Raw json.RawMessage `json:"-"`
}

// PostDate parses the tool's YYYYMMDD upload date; zero time when absent.
func (i *Info) PostDate() time.Time {
	t, err := time.Parse("20060102", i.UploadDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AvailableLanguages enumerates every language code with at least one
// embedded track, for caller diagnostics.
func (i *Info) AvailableLanguages() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, m := range []map[string][]Track{i.AutomaticCaptions, i.Subtitles} {
		for code := range m {
			if !seen[code] {
				seen[code] = true
				langs = append(langs, code)
			}
		}
	}
	return langs
}

// Client fetches subject metadata through the process invoker.
type Client struct {
	inv    *ytdlp.Invoker
	policy retry.Policy
}

// NewClient wires the metadata client. Fetches are retried a few times
// with a short fixed-ish delay since transient tool failures are common.
func NewClient(inv *ytdlp.Invoker) *Client {
	return &Client{
		inv: inv,
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    2 * time.Second,
		},
	}
}

// FetchInfo runs a buffered --dump-json query for the subject URL.
func (c *Client) FetchInfo(ctx context.Context, url string) (*Info, error) {
	var info *Info
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		log.WithField("url", url).Info("Fetching video info")
		out, _, err := c.inv.RunBuffered(ctx, []string{"--dump-json", url})
		if err != nil {
			log.WithError(err).Error("Video info fetch failed")
			return err
		}
		parsed := &Info{}
		if err := json.Unmarshal(out, parsed); err != nil {
			return fmt.Errorf("decode video info: %w", err)
		}
		parsed.Raw = json.RawMessage(out)
		info = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"videoId": info.ID, "title": info.Title}).Info("Video info fetched")
	return info, nil
}
