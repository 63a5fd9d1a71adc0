// SPDX-License-Identifier: MIT

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/procgroup"
	"github.com/cutroom/cutroom/internal/telemetry"
)

// maxStderr bounds the diagnostic output kept from a failed run.
const maxStderr = 4096

// Runner executes a binary and returns its stdout and stderr.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs binaries as child processes in their own process group.
type ExecRunner struct {
	Grace time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
	// #nosec G204 -- binaries come from configuration and args are built by this package
	cmd := exec.CommandContext(ctx, bin, args...)
	procgroup.Bind(cmd, r.Grace)

	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte { return t.buf }

// Config locates the binaries and bounds each run.
type Config struct {
	FFmpegBin  string
	FFprobeBin string
	Timeout    time.Duration
}

// Transcoder runs ffmpeg commands synchronously.
type Transcoder struct {
	cfg    Config
	runner Runner
}

// NewTranscoder returns a Transcoder. A nil runner uses ExecRunner.
func NewTranscoder(cfg Config, runner Runner) *Transcoder {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{Grace: procgroup.DefaultGrace}
	}
	return &Transcoder{cfg: cfg, runner: runner}
}

// Binaries returns the configured ffmpeg and ffprobe paths.
func (t *Transcoder) Binaries() (ffmpeg, ffprobe string) {
	return t.cfg.FFmpegBin, t.cfg.FFprobeBin
}

// Execute runs cmd and leaves the result at cmd.Output.
func (t *Transcoder) Execute(ctx context.Context, cmd Command) (err error) {
	ctx, end := telemetry.StartSpan(ctx, "media", "ffmpeg."+cmd.Op, telemetry.MediaAttributes(cmd.Op, "", "", 0)...)
	defer func() { end(err) }()

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	logger := log.WithComponentFromContext(ctx, "transcoder")
	logger.Debug().Str(log.FieldOp, cmd.Op).Strs("args", cmd.Args).Msg("running ffmpeg")

	start := time.Now()
	_, stderr, err := t.runner.Run(ctx, t.cfg.FFmpegBin, cmd.Args)
	if err == nil {
		if _, statErr := os.Stat(cmd.Output); statErr != nil {
			err = fmt.Errorf("no output written: %w", statErr)
		}
	}
	took := time.Since(start)
	metrics.RecordTranscode(cmd.Op, took, err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		mediaErr := &Error{Op: "ffmpeg " + cmd.Op, Stderr: string(stderr), Err: err}
		logger.Warn().Err(err).Str(log.FieldOp, cmd.Op).Str("stderr", lastLine(string(stderr))).
			Dur("duration", took).Msg("ffmpeg failed")
		return mediaErr
	}
	logger.Info().Str(log.FieldOp, cmd.Op).Dur("duration", took).Msg("ffmpeg finished")
	return nil
}

// Run executes cmd and returns the produced file's bytes.
func (t *Transcoder) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if err := t.Execute(ctx, cmd); err != nil {
		return nil, err
	}
	out, err := os.ReadFile(cmd.Output)
	if err != nil {
		return nil, &Error{Op: "ffmpeg " + cmd.Op, Err: fmt.Errorf("read output: %w", err)}
	}
	return out, nil
}

// Probe returns the container duration of input in seconds.
func (t *Transcoder) Probe(ctx context.Context, input string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	}
	stdout, stderr, err := t.runner.Run(ctx, t.cfg.FFprobeBin, args)
	if err != nil {
		return 0, &Error{Op: "ffprobe", Stderr: string(stderr), Err: err}
	}
	s := strings.TrimSpace(string(stdout))
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &Error{Op: "ffprobe", Err: fmt.Errorf("parse duration %q: %w", s, err)}
	}
	return d, nil
}
