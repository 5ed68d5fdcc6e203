// Package generator is the entry point for generation requests. It turns a
// raw request into a stream of events: optional prompt enhancement, parsing
// against the current catalog, the rate-limit check, then scheduling.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreambot/internal/catalog"
	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/infra"
	"dreambot/internal/parser"
	"dreambot/internal/scheduler"
)

// Enhancer expands a loose description into a command line.
type Enhancer interface {
	Enhance(ctx context.Context, user, dream string) (domain.Suggestion, error)
}

// Recorder enforces usage policy and keeps per-user statistics.
type Recorder interface {
	CheckRateLimit(ctx context.Context, job domain.Job, private bool) error
	RecordStats(ctx context.Context, job domain.Job, private bool) error
}

// Archive persists finished batches and returns their public URLs.
type Archive interface {
	RecordCompletedBatch(ctx context.Context, completed *domain.CompletedJob) ([]string, error)
}

// JobLookup recalls the parameters of an archived batch.
type JobLookup interface {
	LookupJob(ctx context.Context, id string) (*domain.Job, error)
}

// Queue is the part of the scheduler the service drives.
type Queue interface {
	Enqueue(ctx context.Context, job domain.Job, sink scheduler.Sink) error
	Load() int
	WaitUntilIdle(ctx context.Context) error
}

// CatalogSource hands out the catalog snapshot a request is parsed against.
type CatalogSource interface {
	Snapshot() *catalog.Catalog
}

// ErrDreamsDisabled is returned for loose descriptions when no enhancer is
// configured.
var ErrDreamsDisabled = domain.Invalid("Dream requests are not enabled")

// Options wires a Service. Enhancer, Recorder, Archive and Jobs are optional.
type Options struct {
	Catalog  CatalogSource
	Queue    Queue
	Enhancer Enhancer
	Recorder Recorder
	Archive  Archive
	Jobs     JobLookup
	Logger   *infra.Logger

	// StatsTimeout bounds the background statistics update after a job
	// completes. Defaults to 10s.
	StatsTimeout time.Duration
}

// Service runs generation requests.
type Service struct {
	catalog      CatalogSource
	queue        Queue
	enhancer     Enhancer
	recorder     Recorder
	archive      Archive
	jobs         JobLookup
	logger       *infra.Logger
	statsTimeout time.Duration
}

// New constructs a Service.
func New(opts Options) *Service {
	timeout := opts.StatsTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		catalog:      opts.Catalog,
		queue:        opts.Queue,
		enhancer:     opts.Enhancer,
		recorder:     opts.Recorder,
		archive:      opts.Archive,
		jobs:         opts.Jobs,
		logger:       infra.Component(opts.Logger, "generator"),
		statsTimeout: timeout,
	}
}

// Generate starts processing req and returns its event stream. The channel is
// closed after a Completed or Failed event, or once ctx ends.
func (s *Service) Generate(ctx context.Context, req domain.RawRequest) <-chan events.Event {
	stream := events.NewStream(ctx)
	go s.generate(ctx, req, stream)
	return stream.Events()
}

func (s *Service) generate(ctx context.Context, req domain.RawRequest, stream *events.Stream) {
	fail := func(err error) {
		s.logger.Debug().Err(err).Str("user", req.User).Msg("request failed")
		stream.Publish(events.Failed{Err: err})
	}

	if req.IsDream() {
		if s.enhancer == nil {
			fail(ErrDreamsDisabled)
			return
		}
		suggestion, err := s.enhancer.Enhance(ctx, req.User, req.Dream)
		if err != nil {
			fail(fmt.Errorf("generator: enhance prompt: %w", err))
			return
		}
		req.Raw = suggestion.CommandLine()
		req.Comment = suggestion.Comment
		stream.Publish(events.PromptEnhanced{Request: req})
	}

	job, err := parser.Parse(req, s.catalog.Snapshot())
	if err != nil {
		fail(err)
		return
	}
	if s.recorder != nil {
		if err := s.recorder.CheckRateLimit(ctx, job, req.Private); err != nil {
			fail(err)
			return
		}
	}
	stream.Publish(events.Validated{Job: job})

	sink := &statsSink{service: s, stream: stream, private: req.Private}
	if err := s.queue.Enqueue(ctx, job, sink); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		fail(err)
	}
}

// statsSink forwards scheduler events to the request stream and records
// usage once the job completes.
type statsSink struct {
	service *Service
	stream  *events.Stream
	private bool
}

func (k *statsSink) Publish(ev events.Event) {
	if done, ok := ev.(events.Completed); ok && k.service.recorder != nil && done.Result != nil {
		go k.service.recordStats(done.Result.Job, k.private)
	}
	k.stream.Publish(ev)
}

func (s *Service) recordStats(job domain.Job, private bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.statsTimeout)
	defer cancel()
	if err := s.recorder.RecordStats(ctx, job, private); err != nil {
		s.logger.Warn().Err(err).Str("user", job.User()).Msg("failed to record user stats")
	}
}

// Archive stores a completed batch. Without a configured archive it returns
// no URLs.
func (s *Service) Archive(ctx context.Context, completed *domain.CompletedJob) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.RecordCompletedBatch(ctx, completed)
}

// LookupJob returns the parameters of an archived batch.
func (s *Service) LookupJob(ctx context.Context, id string) (*domain.Job, error) {
	if s.jobs == nil {
		return nil, domain.ErrNotFound
	}
	return s.jobs.LookupJob(ctx, id)
}

// Load reports how many jobs are queued or running.
func (s *Service) Load() int {
	return s.queue.Load()
}

// WaitUntilIdle blocks until the queue drains or ctx ends.
func (s *Service) WaitUntilIdle(ctx context.Context) error {
	return s.queue.WaitUntilIdle(ctx)
}

// WarmupCommand is the request sent by Warmup.
const WarmupCommand = "warmup --steps 1"

// Warmup pushes a minimal request through the whole pipeline so the backend
// loads its default model before real traffic arrives.
func (s *Service) Warmup(ctx context.Context) error {
	req := domain.RawRequest{User: "warmup", Source: domain.SourceUnknown, Raw: WarmupCommand}
	start := time.Now()
	for ev := range s.Generate(ctx, req) {
		switch e := ev.(type) {
		case events.Failed:
			return fmt.Errorf("generator: warmup: %w", e.Err)
		case events.Completed:
			s.logger.Info().Dur("elapsed", time.Since(start)).Msg("warmup completed")
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("generator: warmup: stream ended without a result")
}
