// SPDX-License-Identifier: MIT

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream"
)

// maxPages bounds pagination so a misbehaving API cannot loop forever.
const maxPages = 20

// Playlists lists the playlists of the account behind accessToken.
func (s *Service) Playlists(ctx context.Context, p library.Platform, accessToken string) ([]RemotePlaylist, error) {
	prov, caller, err := s.provider(p)
	if err != nil {
		return nil, err
	}
	if prov.APIBaseURL == "" {
		return nil, fmt.Errorf("%s: %w", caller.Name(), upstream.ErrNotConfigured)
	}
	base := strings.TrimRight(prov.APIBaseURL, "/")

	switch p {
	case library.PlatformSpotify:
		return spotifyPlaylists(ctx, caller, base, accessToken)
	case library.PlatformYouTube:
		return youtubePlaylists(ctx, caller, base, accessToken)
	case library.PlatformSoundCloud:
		return soundcloudPlaylists(ctx, caller, base, accessToken)
	case library.PlatformAppleMusic:
		return appleMusicPlaylists(ctx, caller, base, prov.ClientSecret, accessToken)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
	}
}

func getJSON(ctx context.Context, caller *upstream.Caller, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return caller.DoJSON(req, out)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func spotifyPlaylists(ctx context.Context, caller *upstream.Caller, base, token string) ([]RemotePlaylist, error) {
	var out []RemotePlaylist
	next := base + "/me/playlists?limit=50"
	for page := 0; next != "" && page < maxPages; page++ {
		var resp struct {
			Items []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
				Tracks      struct {
					Total int `json:"total"`
				} `json:"tracks"`
			} `json:"items"`
			Next string `json:"next"`
		}
		if err := getJSON(ctx, caller, next, bearer(token), &resp); err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			out = append(out, RemotePlaylist{ExternalID: it.ID, Name: it.Name, Description: it.Description, TrackCount: it.Tracks.Total})
		}
		next = resp.Next
	}
	return out, nil
}

func youtubePlaylists(ctx context.Context, caller *upstream.Caller, base, token string) ([]RemotePlaylist, error) {
	var out []RemotePlaylist
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("part", "snippet,contentDetails")
		q.Set("mine", "true")
		q.Set("maxResults", "50")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var resp struct {
			Items []struct {
				ID      string `json:"id"`
				Snippet struct {
					Title       string `json:"title"`
					Description string `json:"description"`
				} `json:"snippet"`
				ContentDetails struct {
					ItemCount int `json:"itemCount"`
				} `json:"contentDetails"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := getJSON(ctx, caller, base+"/playlists?"+q.Encode(), bearer(token), &resp); err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			out = append(out, RemotePlaylist{ExternalID: it.ID, Name: it.Snippet.Title, Description: it.Snippet.Description, TrackCount: it.ContentDetails.ItemCount})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func soundcloudPlaylists(ctx context.Context, caller *upstream.Caller, base, token string) ([]RemotePlaylist, error) {
	var resp []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		TrackCount  int    `json:"track_count"`
	}
	if err := getJSON(ctx, caller, base+"/me/playlists", map[string]string{"Authorization": "OAuth " + token}, &resp); err != nil {
		return nil, err
	}
	out := make([]RemotePlaylist, 0, len(resp))
	for _, it := range resp {
		out = append(out, RemotePlaylist{ExternalID: strconv.FormatInt(it.ID, 10), Name: it.Title, Description: it.Description, TrackCount: it.TrackCount})
	}
	return out, nil
}

// appleMusicPlaylists needs the developer token (stored as the client secret)
// plus the user's music token.
func appleMusicPlaylists(ctx context.Context, caller *upstream.Caller, base, developerToken, userToken string) ([]RemotePlaylist, error) {
	if developerToken == "" {
		return nil, fmt.Errorf("%s: %w", caller.Name(), upstream.ErrNotConfigured)
	}
	headers := bearer(developerToken)
	headers["Music-User-Token"] = userToken

	var out []RemotePlaylist
	next := base + "/me/library/playlists?limit=100"
	for page := 0; next != "" && page < maxPages; page++ {
		var resp struct {
			Data []struct {
				ID         string `json:"id"`
				Attributes struct {
					Name        string `json:"name"`
					Description struct {
						Standard string `json:"standard"`
					} `json:"description"`
				} `json:"attributes"`
			} `json:"data"`
			Next string `json:"next"`
		}
		if err := getJSON(ctx, caller, next, headers, &resp); err != nil {
			return nil, err
		}
		for _, it := range resp.Data {
			out = append(out, RemotePlaylist{ExternalID: it.ID, Name: it.Attributes.Name, Description: it.Attributes.Description.Standard})
		}
		next = ""
		if resp.Next != "" {
			next = apiOrigin(base) + resp.Next
		}
	}
	return out, nil
}

// apiOrigin strips the path from base; Apple returns next links relative to the host.
func apiOrigin(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return u.Scheme + "://" + u.Host
}
