// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const jobPrefix = "job:"

// FinishedRetention bounds how long completed and failed jobs stay queryable.
const FinishedRetention = 7 * 24 * time.Hour

// BadgerStore keeps jobs as JSON values under "job:<id>" keys.
// Finished jobs expire after FinishedRetention.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func jobEntry(job Job) (*badger.Entry, error) {
	buf, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	e := badger.NewEntry([]byte(jobPrefix+job.ID), buf)
	if job.Status.IsFinished() {
		e = e.WithTTL(FinishedRetention)
	}
	return e, nil
}

func (s *BadgerStore) Put(_ context.Context, job Job) error {
	e, err := jobEntry(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (Job, error) {
	var out Job
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return out, nil
}

func (s *BadgerStore) Update(_ context.Context, id string, fn func(*Job) error) (Job, error) {
	var out Job
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobPrefix + id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		}); err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		e, err := jobEntry(out)
		if err != nil {
			return err
		}
		return txn.SetEntry(e)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return out, nil
}

func (s *BadgerStore) List(_ context.Context) ([]Job, error) {
	var out []Job
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var job Job
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}
			out = append(out, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortJobs(out)
	return out, nil
}
