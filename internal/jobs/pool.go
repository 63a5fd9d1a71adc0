// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/telemetry"
)

// maxAttempts is the first try plus one retry.
const maxAttempts = 2

var errNotPending = errors.New("jobs: job is not pending")

// Config sizes the worker pool.
type Config struct {
	Workers      int
	QueueSize    int
	RetryBackoff time.Duration
}

// Pool runs download jobs on a fixed number of workers fed by a bounded queue.
type Pool struct {
	store Store
	dl    Downloader
	sink  Sink
	ws    Workspace
	cfg   Config

	queue chan string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	now func() time.Time
}

func NewPool(store Store, dl Downloader, sink Sink, ws Workspace, cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Pool{
		store: store,
		dl:    dl,
		sink:  sink,
		ws:    ws,
		cfg:   cfg,
		queue: make(chan string, cfg.QueueSize),
		now:   time.Now,
	}
}

// Submit records a pending job for uploadID and queues it.
// A full queue fails the job immediately.
func (p *Pool) Submit(ctx context.Context, uploadID, url string) (Job, error) {
	job := Job{
		ID:        uuid.NewString(),
		UploadID:  uploadID,
		URL:       url,
		Status:    library.StatusPending,
		CreatedAt: p.now().UTC(),
	}
	if err := p.store.Put(ctx, job); err != nil {
		return Job{}, err
	}
	if err := p.enqueue(job.ID); err != nil {
		p.fail(ctx, job, err)
		return Job{}, err
	}
	return job, nil
}

// Get returns the stored state of a job.
func (p *Pool) Get(ctx context.Context, id string) (Job, error) {
	return p.store.Get(ctx, id)
}

// QueueDepth reports the number of queued, not yet started jobs.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) enqueue(id string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- id:
		metrics.SetDownloadQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run requeues unfinished jobs from a previous run, starts the workers and
// blocks until ctx is done and every worker returned.
func (p *Pool) Run(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "jobs")
	unfinished := p.unfinished(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	logger.Info().Int("workers", p.cfg.Workers).Int("queue_size", p.cfg.QueueSize).Msg("download workers started")

	// Resumed jobs wait for a free slot instead of failing on a full queue.
	// Whatever is left at shutdown stays pending for the next run.
	for _, job := range unfinished {
		if err := p.enqueueWait(ctx, job.ID); err != nil {
			break
		}
		logger.Info().Str(log.FieldJobID, job.ID).Msg("resumed download job")
	}

	<-ctx.Done()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	logger.Info().Msg("download workers stopped")
	return nil
}

// unfinished lists jobs left over from a previous run and resets interrupted
// downloads to pending. It runs before any worker claims a job.
func (p *Pool) unfinished(ctx context.Context) []Job {
	logger := log.WithComponentFromContext(ctx, "jobs")
	jobs, err := p.store.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list jobs for resume failed")
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status.IsFinished() {
			continue
		}
		if job.Status == library.StatusDownloading {
			job, err = p.store.Update(ctx, job.ID, func(j *Job) error {
				j.Status = library.StatusPending
				return nil
			})
			if err != nil {
				continue
			}
		}
		out = append(out, job)
	}
	return out
}

// enqueueWait blocks until the queue accepts id or ctx is done.
func (p *Pool) enqueueWait(ctx context.Context, id string) error {
	select {
	case p.queue <- id:
		metrics.SetDownloadQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			metrics.SetDownloadQueueDepth(len(p.queue))
			p.process(ctx, id)
		}
	}
}

func (p *Pool) process(ctx context.Context, id string) {
	ctx = log.ContextWithJobID(ctx, id)
	logger := log.WithComponentFromContext(ctx, "jobs")

	job, err := p.store.Update(ctx, id, func(j *Job) error {
		if j.Status != library.StatusPending {
			return errNotPending
		}
		started := p.now().UTC()
		j.Status = library.StatusDownloading
		j.StartedAt = &started
		j.Error = ""
		return nil
	})
	if errors.Is(err, errNotPending) {
		// Queued twice, e.g. submitted while a previous run's jobs were resumed.
		logger.Debug().Msg("job already claimed")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("load job failed")
		return
	}
	if err := p.sink.Started(ctx, job); err != nil {
		logger.Warn().Err(err).Str(log.FieldUploadID, job.UploadID).Msg("update upload to downloading")
	}

	dir, cleanup, err := p.ws.WorkDir("dl")
	if err != nil {
		p.fail(ctx, job, err)
		return
	}
	defer cleanup()

	res, err := p.download(ctx, &job, dir)
	if ctx.Err() != nil {
		// Shutdown: leave the job for the next run.
		_, _ = p.store.Update(context.WithoutCancel(ctx), id, func(j *Job) error {
			j.Status = library.StatusPending
			j.Attempts = job.Attempts
			return nil
		})
		logger.Info().Msg("download interrupted by shutdown")
		return
	}
	if err == nil {
		err = p.sink.Completed(ctx, job, res)
	}
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	job, err = p.store.Update(ctx, id, func(j *Job) error {
		finished := p.now().UTC()
		j.Status = library.StatusCompleted
		j.Attempts = job.Attempts
		j.FinishedAt = &finished
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("persist job completion")
	}
	metrics.RecordDownload(string(library.StatusCompleted))
	logger.Info().Str(log.FieldUploadID, job.UploadID).Int("attempts", job.Attempts).Msg("download completed")
}

// download tries once and retries once after RetryBackoff.
func (p *Pool) download(ctx context.Context, job *Job, dir string) (_ Result, err error) {
	ctx, end := telemetry.StartSpan(ctx, "jobs", "jobs.download", telemetry.JobAttributes(job.ID, string(library.StatusDownloading), job.Attempts)...)
	defer func() { end(err) }()

	logger := log.WithComponentFromContext(ctx, "jobs")
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		job.Attempts = attempt
		_, _ = p.store.Update(ctx, job.ID, func(j *Job) error {
			j.Attempts = attempt
			return nil
		})

		res, err := p.dl.Download(ctx, job.URL, dir)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		metrics.IncDownloadRetry()
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", p.cfg.RetryBackoff).Msg("download failed, retrying")
		select {
		case <-time.After(p.cfg.RetryBackoff):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{}, lastErr
}

func (p *Pool) fail(ctx context.Context, job Job, cause error) {
	logger := log.WithComponentFromContext(ctx, "jobs")
	ctx = context.WithoutCancel(ctx)

	_, err := p.store.Update(ctx, job.ID, func(j *Job) error {
		finished := p.now().UTC()
		j.Status = library.StatusFailed
		j.Error = cause.Error()
		if job.Attempts > j.Attempts {
			j.Attempts = job.Attempts
		}
		j.FinishedAt = &finished
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error().Err(err).Str(log.FieldJobID, job.ID).Msg("persist job failure")
	}
	if err := p.sink.Failed(ctx, job, cause); err != nil {
		logger.Warn().Err(err).Str(log.FieldUploadID, job.UploadID).Msg("update upload after failure")
	}
	metrics.RecordDownload(string(library.StatusFailed))
	logger.Warn().Err(cause).Str(log.FieldJobID, job.ID).Msg("download failed")
}
