// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs external tools (ffmpeg, ffprobe, yt-dlp) in their own
// process group so cancellation reaps every child they spawn.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cutroom/cutroom/internal/metrics"
)

// DefaultGrace is how long a cancelled process gets between SIGTERM and SIGKILL.
const DefaultGrace = 3 * time.Second

// Bind puts cmd in its own process group and makes context cancellation
// (exec.CommandContext) terminate the whole group. Processes still alive
// grace after SIGTERM are killed.
func Bind(cmd *exec.Cmd, grace time.Duration) {
	if grace <= 0 {
		grace = DefaultGrace
	}
	Set(cmd)
	cmd.Cancel = func() error {
		err := Kill(cmd, syscall.SIGTERM)
		recordSignal("SIGTERM", err)
		if err != nil {
			return err
		}
		pid := cmd.Process.Pid
		go func() {
			time.Sleep(grace)
			if alive(pid) {
				recordSignal("SIGKILL", Kill(cmd, syscall.SIGKILL))
			}
		}()
		return nil
	}
	cmd.WaitDelay = 2 * grace
}

// Terminate stops a started process group. It sends SIGTERM, waits up to grace
// for waitCh and then sends SIGKILL. It returns the error received on waitCh.
// It is safe to call on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	recordSignal("SIGTERM", Kill(cmd, syscall.SIGTERM))
	select {
	case err := <-waitCh:
		recordWait(err, false)
		return err
	case <-time.After(grace):
	}

	recordSignal("SIGKILL", Kill(cmd, syscall.SIGKILL))
	err := <-waitCh
	recordWait(err, true)
	return err
}

func recordSignal(sig string, err error) {
	switch {
	case err == nil:
		metrics.IncProcessSignal(sig, "sent")
	case errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH):
		metrics.IncProcessSignal(sig, "esrch")
	default:
		metrics.IncProcessSignal(sig, "error")
	}
}

func recordWait(err error, forced bool) {
	result := "exit0"
	if err != nil {
		result = "exit_nonzero"
	}
	if forced {
		result = "forced_" + result
	}
	metrics.IncProcessWait(result)
}
