// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package library persists the editor's working set: uploaded media, playlists
// and their tracks, timeline segments, subtitle records and platform connections.
package library

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("library: not found")

// DownloadStatus tracks how far an upload or track has progressed.
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
)

// String returns the string representation of DownloadStatus.
func (s DownloadStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s DownloadStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsFinished reports whether no further transition is expected.
func (s DownloadStatus) IsFinished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UploadKind says where an upload's media came from.
type UploadKind string

const (
	KindLocal   UploadKind = "local"
	KindYouTube UploadKind = "youtube"
)

// Upload is a media file known to the editor.
type Upload struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	SourceURL       string         `json:"sourceUrl,omitempty"`
	Kind            UploadKind     `json:"kind"`
	StoragePath     string         `json:"storagePath,omitempty"`
	MimeType        string         `json:"mimeType,omitempty"`
	SizeBytes       int64          `json:"sizeBytes"`
	DurationSeconds float64        `json:"durationSeconds"`
	DownloadStatus  DownloadStatus `json:"downloadStatus"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// PlaylistSource names the platform a playlist was imported from.
type PlaylistSource string

const (
	SourceLocal      PlaylistSource = "local"
	SourceYouTube    PlaylistSource = "youtube"
	SourceSpotify    PlaylistSource = "spotify"
	SourceSoundCloud PlaylistSource = "soundcloud"
	SourceAppleMusic PlaylistSource = "apple_music"
)

type Playlist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Source      PlaylistSource `json:"source"`
	ExternalID  string         `json:"externalId,omitempty"`
	TrackCount  int            `json:"trackCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type Track struct {
	ID              string         `json:"id"`
	PlaylistID      string         `json:"playlistId"`
	UploadID        string         `json:"uploadId,omitempty"`
	Title           string         `json:"title"`
	Artist          string         `json:"artist,omitempty"`
	ExternalID      string         `json:"externalId,omitempty"`
	SourceURL       string         `json:"sourceUrl,omitempty"`
	Position        int            `json:"position"`
	DurationSeconds float64        `json:"durationSeconds"`
	DownloadStatus  DownloadStatus `json:"downloadStatus"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Segment is a marked range on an upload's timeline. End is always after Start.
type Segment struct {
	ID        string    `json:"id"`
	UploadID  string    `json:"uploadId"`
	Title     string    `json:"title"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Duration returns End-Start in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SubtitleSource records how a subtitle file came to exist.
type SubtitleSource string

const (
	SubtitleUploaded      SubtitleSource = "upload"
	SubtitleOpenSubtitles SubtitleSource = "opensubtitles"
	SubtitleAdjusted      SubtitleSource = "adjusted"
	SubtitleTranslated    SubtitleSource = "translated"
)

// Subtitle is the metadata of a stored SRT document.
type Subtitle struct {
	ID            string         `json:"id"`
	UploadID      string         `json:"uploadId,omitempty"`
	Name          string         `json:"name"`
	Language      string         `json:"language,omitempty"`
	Source        SubtitleSource `json:"source"`
	StoragePath   string         `json:"storagePath"`
	OffsetApplied float64        `json:"offsetApplied"`
	ParentID      string         `json:"parentId,omitempty"`
	CueCount      int            `json:"cueCount"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Platform identifies an external music or video service.
type Platform string

const (
	PlatformSpotify    Platform = "spotify"
	PlatformYouTube    Platform = "youtube"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformAppleMusic Platform = "apple_music"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformSpotify, PlatformYouTube, PlatformSoundCloud, PlatformAppleMusic}

// ParsePlatform validates a platform name from a URL or request body.
func ParsePlatform(s string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Connection holds the OAuth tokens for one platform. Tokens are never serialised.
type Connection struct {
	Platform     Platform   `json:"platform"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	AccountName  string     `json:"accountName,omitempty"`
	ConnectedAt  time.Time  `json:"connectedAt"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
func (c Connection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
