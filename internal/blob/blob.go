// SPDX-License-Identifier: MIT

// Package blob stores media, subtitle documents and renders on the local
// filesystem under a single root. Keys are slash-separated relative paths.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	xglog "github.com/cutroom/cutroom/internal/log"
	"github.com/google/uuid"
)

var (
	// ErrInvalidKey is returned for keys that are absolute or escape the root.
	ErrInvalidKey = errors.New("blob: invalid key")
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("blob: not found")
)

// Store is a directory-backed object store. Writes are atomic.
type Store struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Path resolves key to an absolute filesystem path inside the root.
func (s *Store) Path(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

// Put writes r under key, replacing any previous object, and returns the byte count.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, fmt.Errorf("blob: create dir: %w", err)
	}
	n, err := writeAtomic(ctx, p, r)
	if err != nil {
		return n, fmt.Errorf("blob: put %s: %w", key, err)
	}
	xglog.FromContext(ctx).Debug().
		Str(xglog.FieldPath, key).
		Int64("bytes", n).
		Msg("blob stored")
	return n, nil
}

// PutBytes is Put for an in-memory document.
func (s *Store) PutBytes(ctx context.Context, key string, data []byte) error {
	_, err := s.Put(ctx, key, bytes.NewReader(data))
	return err
}

// Open returns a reader for key. The caller closes it.
func (s *Store) Open(key string) (*os.File, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// ReadAll loads the whole object into memory.
func (s *Store) ReadAll(key string) ([]byte, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Stat reports the object's size.
func (s *Store) Stat(key string) (int64, error) {
	p, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Delete removes key. Deleting a missing object is not an error.
func (s *Store) Delete(key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// WorkDir creates a scratch directory under the root for multi-file renders.
// The returned cleanup removes it.
func (s *Store) WorkDir(prefix string) (string, func(), error) {
	base := filepath.Join(s.root, "tmp")
	if err := os.MkdirAll(base, 0o750); err != nil {
		return "", nil, fmt.Errorf("blob: create tmp: %w", err)
	}
	dir, err := os.MkdirTemp(base, prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("blob: create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// CheckWritable verifies the root accepts new files.
func (s *Store) CheckWritable() error {
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("blob: root not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// NewKey builds a unique key in dir from a user supplied file name.
// The extension is kept, lower-cased.
func NewKey(dir, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	stem := Slugify(strings.TrimSuffix(filename, path.Ext(filename)))
	return path.Join(dir, uuid.NewString()[:8]+"-"+stem+ext)
}
