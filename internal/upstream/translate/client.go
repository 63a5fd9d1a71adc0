// SPDX-License-Identifier: MIT

// Package translate sends text to a LibreTranslate-compatible service.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cutroom/cutroom/internal/upstream"
)

const (
	upstreamName = "translate"
	batchSize    = 50
)

// Config holds the service location and optional key.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client calls POST {base}/translate.
type Client struct {
	cfg    Config
	caller *upstream.Caller
}

// New returns a Client.
func New(cfg Config, opts upstream.Options) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, caller: upstream.NewCaller(upstreamName, opts)}
}

// Caller exposes the underlying upstream caller.
func (c *Client) Caller() *upstream.Caller { return c.caller }

type request struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText []string `json:"translatedText"`
}

// Translate returns texts translated from source to target, in order. An
// empty source asks the service to detect the language.
func (c *Client) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: %w", upstreamName, upstream.ErrNotConfigured)
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return nil, errors.New("targetLanguage is required")
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = "auto"
	}

	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		req, err := upstream.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", request{
			Q:      batch,
			Source: source,
			Target: target,
			Format: "text",
			APIKey: c.cfg.APIKey,
		})
		if err != nil {
			return nil, err
		}
		var resp response
		if err := c.caller.DoJSON(req, &resp); err != nil {
			return nil, err
		}
		if len(resp.TranslatedText) != len(batch) {
			return nil, fmt.Errorf("%s: got %d translations for %d texts", upstreamName, len(resp.TranslatedText), len(batch))
		}
		out = append(out, resp.TranslatedText...)
	}
	return out, nil
}
