// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/library"
)

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	bs, err := OpenBadgerStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

func TestStore_Contract(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = store.Update(ctx, "missing", func(*Job) error { return nil })
			require.ErrorIs(t, err, ErrNotFound)

			second := Job{ID: "b", UploadID: "up-b", URL: "https://youtu.be/b", Status: library.StatusPending, CreatedAt: base.Add(time.Minute)}
			first := Job{ID: "a", UploadID: "up-a", URL: "https://youtu.be/a", Status: library.StatusPending, CreatedAt: base}
			require.NoError(t, store.Put(ctx, second))
			require.NoError(t, store.Put(ctx, first))

			updated, err := store.Update(ctx, "a", func(j *Job) error {
				j.Status = library.StatusCompleted
				j.Attempts = 1
				finished := base.Add(time.Hour)
				j.FinishedAt = &finished
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, library.StatusCompleted, updated.Status)

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			if diff := cmp.Diff(updated, got); diff != "" {
				t.Errorf("stored job mismatch (-want +got):\n%s", diff)
			}

			boom := errors.New("boom")
			_, err = store.Update(ctx, "b", func(j *Job) error {
				j.Status = library.StatusFailed
				return boom
			})
			require.ErrorIs(t, err, boom)
			got, err = store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, library.StatusPending, got.Status, "failed update is not written")

			all, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "a", all[0].ID)
			assert.Equal(t, "b", all[1].ID)
		})
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "jobs")

	s, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Job{ID: "a", UploadID: "up", Status: library.StatusDownloading, CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.Close())

	s, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, library.StatusDownloading, got.Status)
}

func TestOpen_Backends(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("badger", filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("bolt", "")
	assert.Error(t, err)
}
