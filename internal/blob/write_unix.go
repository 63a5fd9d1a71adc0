// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package blob

import (
	"context"
	"io"

	xglog "github.com/cutroom/cutroom/internal/log"
	"github.com/google/renameio/v2"
)

// writeAtomic streams r into path with fsync before rename, so readers see
// either the old object or the complete new one.
func writeAtomic(ctx context.Context, path string, r io.Reader) (int64, error) {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			xglog.FromContext(ctx).Debug().Err(err).Msg("cleanup pending blob")
		}
	}()

	n, err := io.Copy(pendingFile, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, err
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return n, err
	}
	return n, nil
}

// ctxReader stops long uploads once the request is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
