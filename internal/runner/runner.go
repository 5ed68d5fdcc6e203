// Package runner executes one generation job against the backend: it splits
// the job into sub-batches, fills the model's workflow template, then submits,
// tracks and downloads each sub-batch with retries.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"dreambot/internal/catalog"
	"dreambot/internal/comfy"
	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/infra"
)

// Backend is the subset of the backend client the runner needs.
type Backend interface {
	Submit(ctx context.Context, workflow json.RawMessage) (string, error)
	Subscribe(ctx context.Context, jobID string) (<-chan struct{}, error)
	Status(ctx context.Context, jobID string) ([]comfy.Image, bool, error)
	Fetch(ctx context.Context, img comfy.Image) ([]byte, error)
}

// CatalogSource hands out catalog snapshots.
type CatalogSource interface {
	Snapshot() *catalog.Catalog
}

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	Backend Backend
	Catalog CatalogSource
	Logger  *infra.Logger

	// IdleTimeout bounds the wait for a push before polling anyway.
	IdleTimeout time.Duration
	// MaxRounds bounds the status polls per attempt.
	MaxRounds int
	// MaxRetries is the number of attempts after the first one.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	JPEGQuality     int
}

// Runner implements scheduler.Runner.
type Runner struct {
	backend         Backend
	catalog         CatalogSource
	logger          *infra.Logger
	idleTimeout     time.Duration
	maxRounds       int
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	jpegQuality     int
}

// New validates opts and fills in defaults.
func New(opts Options) (*Runner, error) {
	if opts.Backend == nil {
		return nil, errors.New("runner: backend is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("runner: catalog is required")
	}
	r := &Runner{
		backend:         opts.Backend,
		catalog:         opts.Catalog,
		logger:          infra.Component(opts.Logger, "runner"),
		idleTimeout:     opts.IdleTimeout,
		maxRounds:       opts.MaxRounds,
		maxRetries:      opts.MaxRetries,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		jpegQuality:     opts.JPEGQuality,
	}
	if r.idleTimeout <= 0 {
		r.idleTimeout = 90 * time.Second
	}
	if r.maxRounds <= 0 {
		r.maxRounds = 10
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	if r.initialInterval <= 0 {
		r.initialInterval = 50 * time.Millisecond
	}
	if r.maxInterval <= 0 {
		r.maxInterval = 2 * time.Second
	}
	if r.jpegQuality <= 0 {
		r.jpegQuality = 90
	}
	return r, nil
}

// Run executes job and streams its events. The channel ends with exactly one
// Completed or Failed event and is then closed.
func (r *Runner) Run(ctx context.Context, job domain.Job) <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		result, err := r.run(ctx, job, out)
		if err != nil {
			r.logger.Warn().Err(err).Str("user", job.User()).Str("model", job.Model).Msg("job failed")
			out <- events.Failed{Err: err}
			return
		}
		out <- events.Completed{Result: result}
	}()
	return out
}

func (r *Runner) run(ctx context.Context, job domain.Job, out chan<- events.Event) (*domain.CompletedJob, error) {
	cat := r.catalog.Snapshot()
	model, ok := cat.Model(job.Model)
	if !ok {
		return nil, fmt.Errorf("runner: model %q is no longer configured", job.Model)
	}
	template, err := os.ReadFile(model.Workflow)
	if err != nil {
		return nil, fmt.Errorf("runner: read workflow: %w", err)
	}
	batches := job.SubBatches()
	if len(batches) == 0 {
		return nil, domain.Invalid("Resolution is too high")
	}

	started := time.Now()
	images := make([][]byte, 0, job.Count)
	for _, size := range batches {
		out <- events.Progress{Percent: uint(100 * len(images) / job.Count)}

		seed := job.Seed + int64(len(images))
		workflow, err := BuildWorkflow(template, model, job, size, seed)
		if err != nil {
			return nil, err
		}
		batch, err := r.generateBatch(ctx, workflow)
		if err != nil {
			return nil, err
		}
		images = append(images, batch...)
	}

	r.logger.Info().
		Str("user", job.User()).
		Str("model", job.Model).
		Int("images", len(images)).
		Dur("elapsed", time.Since(started)).
		Msg("job completed")
	return &domain.CompletedJob{ID: uuid.New(), Job: job, Images: images}, nil
}

func (r *Runner) generateBatch(ctx context.Context, workflow json.RawMessage) ([][]byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.initialInterval
	expo.MaxInterval = r.maxInterval
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.maxRetries)), ctx)

	var images [][]byte
	attempt := 0
	op := func() error {
		attempt++
		result, err := r.attempt(ctx, workflow)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("sub-batch attempt failed")
			return err
		}
		images = result
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return images, nil
}

func (r *Runner) attempt(ctx context.Context, workflow json.RawMessage) ([][]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobID, err := r.backend.Submit(ctx, workflow)
	if err != nil {
		return nil, err
	}
	files, err := r.track(ctx, jobID)
	if err != nil {
		return nil, err
	}
	images := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := r.backend.Fetch(ctx, f)
		if err != nil {
			return nil, err
		}
		jpg, err := ToJPEG(data, r.jpegQuality)
		if err != nil {
			return nil, err
		}
		images = append(images, jpg)
	}
	return images, nil
}

// track waits for the job to finish. Each round waits for a push or the idle
// timeout, whichever comes first, and then polls the status once.
func (r *Runner) track(ctx context.Context, jobID string) ([]comfy.Image, error) {
	wake, err := r.backend.Subscribe(ctx, jobID)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("push subscription failed, polling on timer")
		wake = nil
	}

	timer := time.NewTimer(r.idleTimeout)
	defer timer.Stop()
	for round := 1; round <= r.maxRounds; round++ {
		select {
		case _, ok := <-wake:
			if !ok {
				r.logger.Debug().Str("job_id", jobID).Msg("push connection lost")
				wake = nil
			}
		case <-timer.C:
			r.logger.Debug().Str("job_id", jobID).Int("round", round).Msg("no push before idle timeout")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		timer.Reset(r.idleTimeout)

		files, done, err := r.backend.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if done {
			return files, nil
		}
	}
	return nil, comfy.ErrTimeout
}
