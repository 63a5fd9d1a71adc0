// SPDX-License-Identifier: MIT

// Package opensubtitles searches and downloads subtitles from the
// OpenSubtitles REST API.
package opensubtitles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/cache"
	"github.com/cutroom/cutroom/internal/upstream"
)

const (
	upstreamName   = "opensubtitles"
	maxSubtitleLen = 5 << 20
)

// Config holds API access settings.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	CacheTTL  time.Duration
}

// SearchParams narrows a subtitle search. At least one of Query or IMDbID is required.
type SearchParams struct {
	Query     string
	Languages []string
	IMDbID    string
}

// Result is one subtitle candidate.
type Result struct {
	ID        string `json:"id"`
	FileID    int    `json:"fileId"`
	FileName  string `json:"fileName"`
	Language  string `json:"language"`
	Release   string `json:"release"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Downloads int    `json:"downloadCount"`
	Trusted   bool   `json:"fromTrusted"`
}

// Link is a short-lived download location for one subtitle file.
type Link struct {
	URL       string `json:"link"`
	FileName  string `json:"fileName"`
	Remaining int    `json:"remaining"`
}

// Client talks to the OpenSubtitles API.
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
		cfg.CacheTTL = 10 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, caller: upstream.NewCaller(upstreamName, opts), cache: c}
}

// Caller exposes the underlying upstream caller.
func (c *Client) Caller() *upstream.Caller { return c.caller }

func (c *Client) configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Api-Key", c.cfg.APIKey)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
}

type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Language      string `json:"language"`
			Release       string `json:"release"`
			DownloadCount int    `json:"download_count"`
			FromTrusted   bool   `json:"from_trusted"`
			Files         []struct {
				FileID   int    `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
			FeatureDetails struct {
				Title string `json:"title"`
				Year  int    `json:"year"`
			} `json:"feature_details"`
		} `json:"attributes"`
	} `json:"data"`
}

// Search lists subtitles matching p. Results are cached per query.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Result, error) {
	if !c.configured() {
		return nil, fmt.Errorf("%s: %w", upstreamName, upstream.ErrNotConfigured)
	}
	q := url.Values{}
	if s := strings.TrimSpace(p.Query); s != "" {
		q.Set("query", s)
	}
	if id := strings.TrimPrefix(strings.TrimSpace(p.IMDbID), "tt"); id != "" {
		q.Set("imdb_id", id)
	}
	if q.Get("query") == "" && q.Get("imdb_id") == "" {
		return nil, errors.New("query or imdbId is required")
	}
	if len(p.Languages) > 0 {
		langs := make([]string, 0, len(p.Languages))
		for _, l := range p.Languages {
			if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
				langs = append(langs, l)
			}
		}
		q.Set("languages", strings.Join(langs, ","))
	}
	encoded := q.Encode()

	if cached, ok := cache.GetJSON[[]Result](ctx, c.cache, upstreamName, encoded); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/subtitles?"+encoded, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	var resp searchResponse
	if err := c.caller.DoJSON(req, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Data))
	for _, d := range resp.Data {
		a := d.Attributes
		r := Result{
			ID:        d.ID,
			Language:  a.Language,
			Release:   a.Release,
			Title:     a.FeatureDetails.Title,
			Year:      a.FeatureDetails.Year,
			Downloads: a.DownloadCount,
			Trusted:   a.FromTrusted,
		}
		if len(a.Files) > 0 {
			r.FileID = a.Files[0].FileID
			r.FileName = a.Files[0].FileName
		}
		results = append(results, r)
	}
	cache.SetJSON(ctx, c.cache, upstreamName, encoded, results, c.cfg.CacheTTL)
	return results, nil
}

// DownloadLink requests a download link for fileID. Each call counts
// against the account's daily quota.
func (c *Client) DownloadLink(ctx context.Context, fileID int) (Link, error) {
	if !c.configured() {
		return Link{}, fmt.Errorf("%s: %w", upstreamName, upstream.ErrNotConfigured)
	}
	if fileID <= 0 {
		return Link{}, errors.New("fileId must be positive")
	}
	req, err := upstream.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/download", map[string]int{"file_id": fileID})
	if err != nil {
		return Link{}, err
	}
	c.authorize(req)

	var resp struct {
		Link      string `json:"link"`
		FileName  string `json:"file_name"`
		Remaining int    `json:"remaining"`
	}
	if err := c.caller.DoJSON(req, &resp); err != nil {
		return Link{}, err
	}
	if resp.Link == "" {
		return Link{}, fmt.Errorf("%s: download response for file %d has no link", upstreamName, fileID)
	}
	return Link{URL: resp.Link, FileName: resp.FileName, Remaining: resp.Remaining}, nil
}

// Fetch downloads the subtitle file behind a link.
func (c *Client) Fetch(ctx context.Context, link Link) ([]byte, error) {
	return c.caller.Fetch(ctx, link.URL, maxSubtitleLen)
}
