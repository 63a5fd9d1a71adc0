// SPDX-License-Identifier: MIT

package youtube

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://www.youtube.com/playlist?list=PL123", want: "PL123"},
		{in: "https://youtube.com/watch?v=abc&list=PL456&index=2", want: "PL456"},
		{in: "https://music.youtube.com/playlist?list=OLAK5", want: "OLAK5"},
		{in: "https://m.youtube.com/playlist?list=PLm", want: "PLm"},
		{in: "https://www.youtube.com/watch?v=abc", wantErr: true},
		{in: "https://vimeo.com/playlist?list=PL1", wantErr: true},
		{in: "not a url", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PlaylistID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotPlaylist)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	l := NewLister(0)
	l.list = func(_ context.Context, id string) ([]item, error) {
		assert.Equal(t, "PL123", id)
		return []item{
			{videoID: "a1", title: "Lecture Series Part 1"},
			{videoID: "", title: "deleted video"},
			{videoID: "b2", title: "Lecture Series Part 2"},
		}, nil
	}

	p, err := l.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	assert.Equal(t, "PL123", p.ID)
	assert.Equal(t, "Lecture Series Part Playlist", p.Title)
	require.Len(t, p.Videos, 2)
	assert.Equal(t, Video{ID: "a1", Title: "Lecture Series Part 1", URL: "https://www.youtube.com/watch?v=a1"}, p.Videos[0])
}

func TestResolve_ListError(t *testing.T) {
	l := NewLister(0)
	l.list = func(context.Context, string) ([]item, error) { return nil, errors.New("boom") }
	_, err := l.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	assert.ErrorContains(t, err, "boom")
}

func TestPlaylistTitle(t *testing.T) {
	assert.Equal(t, "Untitled playlist", playlistTitle(nil))
	assert.Equal(t, "Solo Playlist", playlistTitle([]Video{{Title: "Solo"}}))
	assert.Equal(t, "A Playlist", playlistTitle([]Video{{Title: "A"}, {Title: "B"}}))
}
