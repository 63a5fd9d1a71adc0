// SPDX-License-Identifier: MIT

package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/metrics"
)

// Result describes a finished download on local disk.
type Result struct {
	Path            string
	Title           string
	DurationSeconds float64
}

// Downloader fetches url into dir.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (Result, error)
}

// YTDLP downloads with the yt-dlp binary.
type YTDLP struct {
	Bin     string
	Format  string
	Timeout time.Duration
	Runner  media.Runner
}

// NewYTDLP returns a downloader that runs bin through runner. A nil runner
// uses media.ExecRunner.
func NewYTDLP(bin, format string, timeout time.Duration, runner media.Runner) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	if format == "" {
		format = "bv*+ba/b"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &YTDLP{Bin: bin, Format: format, Timeout: timeout, Runner: runner}
}

// printTemplate is emitted once the final file is in place.
// filepath sits in the middle because titles may contain tabs.
const printTemplate = "after_move:%(duration)s\t%(filepath)s\t%(title)s"

// Args returns the yt-dlp argv for downloading url into dir.
func (y *YTDLP) Args(url, dir string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--restrict-filenames",
		"--no-simulate",
		"-f", y.Format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", printTemplate,
		"--", url,
	}
}

func (y *YTDLP) Download(ctx context.Context, url, dir string) (Result, error) {
	if y.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.Timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, err := y.Runner.Run(ctx, y.Bin, y.Args(url, dir))
	var res Result
	if err == nil {
		res, err = parsePrinted(stdout)
	}
	metrics.RecordUpstream("ytdlp", time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return Result{}, &media.Error{Op: "yt-dlp", Stderr: string(stderr), Err: err}
	}
	return res, nil
}

// parsePrinted reads the last line produced by printTemplate.
func parsePrinted(stdout []byte) (Result, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	last := strings.TrimSpace(string(lines[len(lines)-1]))
	parts := strings.SplitN(last, "\t", 3)
	if len(parts) < 2 || parts[1] == "" || parts[1] == "NA" {
		return Result{}, errors.New("no output file reported")
	}
	res := Result{Path: parts[1]}
	if d, err := strconv.ParseFloat(parts[0], 64); err == nil && d > 0 {
		res.DurationSeconds = d
	}
	if len(parts) == 3 && parts[2] != "NA" {
		res.Title = parts[2]
	}
	return res, nil
}
