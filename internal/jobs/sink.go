// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/media"
)

// Sink receives job lifecycle transitions.
type Sink interface {
	Started(ctx context.Context, job Job) error
	// Completed takes ownership of res.Path before the work dir is removed.
	Completed(ctx context.Context, job Job, res Result) error
	Failed(ctx context.Context, job Job, cause error) error
}

// Workspace hands out scratch directories.
type Workspace interface {
	WorkDir(prefix string) (string, func(), error)
}

// videoDir is the blob prefix for downloaded media.
const videoDir = "videos"

// UploadSink mirrors job progress onto the upload row and moves finished
// files into blob storage.
type UploadSink struct {
	lib   *library.Store
	blobs *blob.Store
}

func NewUploadSink(lib *library.Store, blobs *blob.Store) *UploadSink {
	return &UploadSink{lib: lib, blobs: blobs}
}

func (s *UploadSink) Started(ctx context.Context, job Job) error {
	return s.lib.UpdateUploadStatus(ctx, job.UploadID, library.StatusUpdate{Status: library.StatusDownloading})
}

func (s *UploadSink) Completed(ctx context.Context, job Job, res Result) error {
	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("open download: %w", err)
	}
	defer f.Close()

	key := blob.NewKey(videoDir, filepath.Base(res.Path))
	n, err := s.blobs.Put(ctx, key, f)
	if err != nil {
		return err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(res.Path)), ".")
	return s.lib.UpdateUploadStatus(ctx, job.UploadID, library.StatusUpdate{
		Status:          library.StatusCompleted,
		StoragePath:     key,
		MimeType:        media.ContentType(ext),
		Title:           res.Title,
		SizeBytes:       n,
		DurationSeconds: res.DurationSeconds,
	})
}

func (s *UploadSink) Failed(ctx context.Context, job Job, cause error) error {
	return s.lib.UpdateUploadStatus(ctx, job.UploadID, library.StatusUpdate{
		Status: library.StatusFailed,
		Error:  cause.Error(),
	})
}
