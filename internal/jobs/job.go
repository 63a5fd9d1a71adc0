// SPDX-License-Identifier: MIT

// Package jobs runs video downloads in the background and remembers their
// progress in a pluggable job store.
package jobs

import (
	"errors"
	"time"

	"github.com/cutroom/cutroom/internal/library"
)

var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("jobs: not found")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrClosed is returned by Submit after the pool stopped.
	ErrClosed = errors.New("jobs: pool closed")
)

// Job is one download of a remote video into an upload row.
type Job struct {
	ID         string                 `json:"id"`
	UploadID   string                 `json:"uploadId"`
	URL        string                 `json:"url"`
	Status     library.DownloadStatus `json:"status"`
	Attempts   int                    `json:"attempts"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	StartedAt  *time.Time             `json:"startedAt,omitempty"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
}
