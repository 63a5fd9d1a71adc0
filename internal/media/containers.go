// SPDX-License-Identifier: MIT

// Package media turns editing requests into ffmpeg invocations and runs them.
package media

import (
	"fmt"
	"sort"
	"strings"
)

// container describes the codec defaults of one output format.
type container struct {
	videoCodec  string
	audioCodec  string
	contentType string
	audioOnly   bool
	silent      bool
	extra       []string
}

var containers = map[string]container{
	"mp4":  {videoCodec: "libx264", audioCodec: "aac", contentType: "video/mp4", extra: []string{"-movflags", "+faststart"}},
	"mov":  {videoCodec: "libx264", audioCodec: "aac", contentType: "video/quicktime", extra: []string{"-movflags", "+faststart"}},
	"mkv":  {videoCodec: "libx264", audioCodec: "aac", contentType: "video/x-matroska"},
	"webm": {videoCodec: "libvpx-vp9", audioCodec: "libopus", contentType: "video/webm", extra: []string{"-row-mt", "1"}},
	"gif":  {videoCodec: "gif", contentType: "image/gif", silent: true},
	"mp3":  {audioCodec: "libmp3lame", contentType: "audio/mpeg", audioOnly: true},
	"wav":  {audioCodec: "pcm_s16le", contentType: "audio/wav", audioOnly: true},
	"m4a":  {audioCodec: "aac", contentType: "audio/mp4", audioOnly: true},
	"ogg":  {audioCodec: "libvorbis", contentType: "audio/ogg", audioOnly: true},
	"flac": {audioCodec: "flac", contentType: "audio/flac", audioOnly: true},
}

func lookupContainer(name string) (string, container, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if name == "" {
		name = "mp4"
	}
	c, ok := containers[name]
	if !ok {
		return "", container{}, fmt.Errorf("%w: unsupported container %q", ErrInvalidSpec, name)
	}
	return name, c, nil
}

// Containers lists the supported output formats.
func Containers() []string {
	out := make([]string, 0, len(containers))
	for k := range containers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ContentType returns the MIME type for an output container.
func ContentType(name string) string {
	if _, c, err := lookupContainer(name); err == nil {
		return c.contentType
	}
	return "application/octet-stream"
}

// IsAudioOnly reports whether the container carries no video stream.
func IsAudioOnly(name string) bool {
	_, c, err := lookupContainer(name)
	return err == nil && c.audioOnly
}
