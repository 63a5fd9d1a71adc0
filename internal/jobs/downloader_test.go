// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/media"
)

type scriptedRunner struct {
	bin    string
	args   []string
	stdout string
	stderr string
	err    error
}

func (r *scriptedRunner) Run(_ context.Context, bin string, args []string) ([]byte, []byte, error) {
	r.bin, r.args = bin, args
	return []byte(r.stdout), []byte(r.stderr), r.err
}

func TestYTDLP_Args(t *testing.T) {
	y := NewYTDLP("", "", 0, &scriptedRunner{})
	want := []string{
		"--no-playlist", "--no-progress", "--no-warnings", "--restrict-filenames", "--no-simulate",
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", "/work/%(id)s.%(ext)s",
		"--print", "after_move:%(duration)s\t%(filepath)s\t%(title)s",
		"--", "-https://example.com/v",
	}
	if diff := cmp.Diff(want, y.Args("-https://example.com/v", "/work")); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestYTDLP_Download(t *testing.T) {
	r := &scriptedRunner{stdout: "[info] ignored\n212.5\t/work/abc.mp4\tA\ttabbed title\n"}
	y := NewYTDLP("/opt/yt-dlp", "best", 0, r)

	res, err := y.Download(context.Background(), "https://youtu.be/abc", "/work")
	require.NoError(t, err)
	assert.Equal(t, "/opt/yt-dlp", r.bin)
	assert.Equal(t, Result{Path: "/work/abc.mp4", Title: "A\ttabbed title", DurationSeconds: 212.5}, res)
}

func TestYTDLP_DownloadErrors(t *testing.T) {
	r := &scriptedRunner{stderr: "ERROR: [youtube] abc: Video unavailable\n", err: errors.New("exit status 1")}
	_, err := NewYTDLP("", "", 0, r).Download(context.Background(), "https://youtu.be/abc", "/work")
	var me *media.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "yt-dlp", me.Op)
	assert.Contains(t, err.Error(), "Video unavailable")

	r = &scriptedRunner{stdout: "NA\tNA\tNA\n"}
	_, err = NewYTDLP("", "", 0, r).Download(context.Background(), "https://youtu.be/abc", "/work")
	assert.ErrorContains(t, err, "no output file")
}

func TestParsePrinted_MissingFields(t *testing.T) {
	res, err := parsePrinted([]byte("NA\t/work/x.webm\tNA"))
	require.NoError(t, err)
	assert.Equal(t, Result{Path: "/work/x.webm"}, res)

	_, err = parsePrinted(nil)
	assert.Error(t, err)
}
