// SPDX-License-Identifier: MIT

// Package youtube resolves YouTube playlist URLs into their videos.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/ytget/ytdlp/v2"
)

const (
	upstreamName = "youtube"
	// DefaultParseTimeout bounds one playlist listing.
	DefaultParseTimeout = 60 * time.Second
	videoURLTemplate    = "https://www.youtube.com/watch?v=%s"
)

// ErrNotPlaylist is returned for URLs without a list parameter.
var ErrNotPlaylist = errors.New("url is not a youtube playlist")

// Video is one playlist entry.
type Video struct {
	ID    string
	Title string
	URL   string
}

// Playlist is a resolved playlist.
type Playlist struct {
	ID     string
	Title  string
	URL    string
	Videos []Video
}

type item struct {
	videoID string
	title   string
}

// Lister lists playlist items with the ytdlp library.
type Lister struct {
	timeout time.Duration
	list    func(ctx context.Context, playlistID string) ([]item, error)
}

// NewLister returns a Lister using timeout per call.
func NewLister(timeout time.Duration) *Lister {
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	return &Lister{timeout: timeout, list: listWithLibrary}
}

func listWithLibrary(ctx context.Context, playlistID string) ([]item, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]item, 0, len(items))
	for _, it := range items {
		out = append(out, item{videoID: it.VideoID, title: it.Title})
	}
	return out, nil
}

// PlaylistID extracts the list parameter from a playlist or watch URL.
func PlaylistID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotPlaylist, raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" && host != "music.youtube.com" && host != "youtu.be" {
		return "", fmt.Errorf("%w: %q", ErrNotPlaylist, raw)
	}
	id := u.Query().Get("list")
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrNotPlaylist, raw)
	}
	return id, nil
}

// Resolve lists every video of the playlist behind rawURL.
func (l *Lister) Resolve(ctx context.Context, rawURL string) (Playlist, error) {
	id, err := PlaylistID(rawURL)
	if err != nil {
		return Playlist{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	items, err := l.list(ctx, id)
	metrics.RecordUpstream(upstreamName, time.Since(start), err)
	if err != nil {
		return Playlist{}, fmt.Errorf("list playlist %s: %w", id, err)
	}

	videos := make([]Video, 0, len(items))
	for _, it := range items {
		if it.videoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:    it.videoID,
			Title: it.title,
			URL:   fmt.Sprintf(videoURLTemplate, it.videoID),
		})
	}
	return Playlist{ID: id, Title: playlistTitle(videos), URL: rawURL, Videos: videos}, nil
}

// playlistTitle derives a display name; the listing API does not return one.
func playlistTitle(videos []Video) string {
	if len(videos) == 0 {
		return "Untitled playlist"
	}
	if len(videos) > 1 {
		prefix := commonPrefix(videos[0].Title, videos[1].Title)
		if p := strings.TrimSpace(prefix); len(p) > 10 {
			return p + " Playlist"
		}
	}
	return videos[0].Title + " Playlist"
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
