// SPDX-License-Identifier: MIT

// Package shazam identifies songs through the Shazam API on RapidAPI.
package shazam

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/cache"
	"github.com/cutroom/cutroom/internal/upstream"
)

const (
	upstreamName = "shazam"
	// The detect endpoint rejects payloads over roughly 500 KB of raw audio.
	MaxSampleBytes = 500 << 10
)

// ErrEmptySample is returned for zero-length audio.
var ErrEmptySample = errors.New("audio sample is empty")

// Config holds RapidAPI credentials.
type Config struct {
	BaseURL  string
	APIKey   string
	Host     string
	CacheTTL time.Duration
}

// Match describes an identified track. Found is false when Shazam knows no match.
type Match struct {
	Found    bool   `json:"found"`
	Key      string `json:"key,omitempty"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Genre    string `json:"genre,omitempty"`
	CoverArt string `json:"coverArt,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Client calls POST {base}/songs/v2/detect.
type Client struct {
	cfg    Config
	caller *upstream.Caller
	cache  cache.Cache
}

// New returns a Client. c may be nil to disable caching.
func New(cfg Config, opts upstream.Options, c cache.Cache) *Client {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, caller: upstream.NewCaller(upstreamName, opts), cache: c}
}

// Caller exposes the underlying upstream caller.
func (c *Client) Caller() *upstream.Caller { return c.caller }

type detectResponse struct {
	Track *struct {
		Key      string `json:"key"`
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		URL      string `json:"url"`
		Images   struct {
			CoverArt string `json:"coverart"`
		} `json:"images"`
		Genres struct {
			Primary string `json:"primary"`
		} `json:"genres"`
	} `json:"track"`
}

// Identify sends raw PCM audio (44.1 kHz mono s16le) for recognition.
// Results are cached by the SHA-256 of the sample.
func (c *Client) Identify(ctx context.Context, sample []byte) (Match, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return Match{}, fmt.Errorf("%s: %w", upstreamName, upstream.ErrNotConfigured)
	}
	if len(sample) == 0 {
		return Match{}, ErrEmptySample
	}
	if len(sample) > MaxSampleBytes {
		sample = sample[:MaxSampleBytes]
	}
	sum := sha256.Sum256(sample)
	digest := hex.EncodeToString(sum[:])

	if m, ok := cache.GetJSON[Match](ctx, c.cache, upstreamName, digest); ok {
		return m, nil
	}

	body := base64.StdEncoding.EncodeToString(sample)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/songs/v2/detect", bytes.NewBufferString(body))
	if err != nil {
		return Match{}, err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.host())

	var resp detectResponse
	if err := c.caller.DoJSON(req, &resp); err != nil {
		return Match{}, err
	}

	m := Match{}
	if t := resp.Track; t != nil {
		m = Match{
			Found:    true,
			Key:      t.Key,
			Title:    t.Title,
			Artist:   t.Subtitle,
			Genre:    t.Genres.Primary,
			CoverArt: t.Images.CoverArt,
			URL:      t.URL,
		}
	}
	cache.SetJSON(ctx, c.cache, upstreamName, digest, m, c.cfg.CacheTTL)
	return m, nil
}

func (c *Client) host() string {
	if c.cfg.Host != "" {
		return c.cfg.Host
	}
	return strings.TrimPrefix(strings.TrimPrefix(c.cfg.BaseURL, "https://"), "http://")
}
