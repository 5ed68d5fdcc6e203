// Package scheduler orders generation jobs and runs them one at a time.
//
// All queue state lives in a single goroutine (Run). Callers talk to it through
// Enqueue and WaitUntilIdle; the runner's events flow back through the same
// loop to the job's sink.
package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/infra"
)

// ErrNoResult is reported when a runner stops without a terminal event.
var ErrNoResult = errors.New("scheduler: runner stopped without a result")

// Runner executes one job. The returned channel is closed when the run ends.
type Runner interface {
	Run(ctx context.Context, job domain.Job) <-chan events.Event
}

// Sink receives the events of one job.
type Sink interface {
	Publish(events.Event)
}

type entry struct {
	ctx  context.Context
	job  domain.Job
	sink Sink
}

type command struct {
	enqueue *entry
	waiter  chan struct{}
}

// Scheduler owns the pending queue and the single active slot.
type Scheduler struct {
	runner   Runner
	logger   *infra.Logger
	commands chan command
	stopped  chan struct{}
	load     atomic.Int64
}

// New creates a scheduler. Nothing runs until Run is called.
func New(runner Runner, logger *infra.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   infra.Component(logger, "scheduler"),
		commands: make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Enqueue adds job to the queue. The sink immediately receives a Queued event
// and later every event of the run. Entries whose ctx ends before they are
// selected are dropped without running.
func (s *Scheduler) Enqueue(ctx context.Context, job domain.Job, sink Sink) error {
	cmd := command{enqueue: &entry{ctx: ctx, job: job, sink: sink}}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.stopped:
		return domain.ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load reports the number of queued jobs plus the active one.
func (s *Scheduler) Load() int {
	return int(s.load.Load())
}

// WaitUntilIdle blocks until no job is queued or running, the scheduler has
// stopped, or ctx ends.
func (s *Scheduler) WaitUntilIdle(ctx context.Context) error {
	waiter := make(chan struct{})
	select {
	case s.commands <- command{waiter: waiter}:
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-waiter:
		return nil
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the control loop. It returns after ctx ends, the active run has been
// drained and every queued entry has been failed.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)

	var (
		queue    []entry
		active   *entry
		stream   <-chan events.Event
		finished bool
		previous *domain.Job
		waiters  []chan struct{}
	)

	notifyIdle := func() {
		if s.load.Load() != 0 {
			return
		}
		for _, w := range waiters {
			close(w)
		}
		waiters = nil
	}

	dispatch := func() {
		if ctx.Err() != nil {
			return
		}
		for active == nil && len(queue) > 0 {
			jobs := make([]domain.Job, len(queue))
			for i, e := range queue {
				jobs[i] = e.job
			}
			i := Select(jobs, previous)
			next := queue[i]
			queue = slices.Delete(queue, i, i+1)
			if next.ctx.Err() != nil {
				s.load.Add(-1)
				s.logger.Debug().Str("user", next.job.User()).Msg("dropping entry whose caller left")
				continue
			}
			active, finished = &next, false
			stream = s.runner.Run(ctx, next.job)
			s.logger.Info().
				Str("user", next.job.User()).
				Str("model", next.job.Model).
				Int("count", next.job.Count).
				Int("queued", len(queue)).
				Msg("job started")
		}
		if active == nil {
			previous = nil
			notifyIdle()
		}
	}

	forward := func(ev events.Event, ok bool) {
		if ok {
			if finished {
				s.logger.Warn().Str("event", events.Kind(ev)).Msg("runner emitted after terminal event")
				return
			}
			finished = events.IsTerminal(ev)
			active.sink.Publish(ev)
			return
		}
		if !finished {
			active.sink.Publish(events.Failed{Err: ErrNoResult})
		}
		job := active.job
		previous = &job
		active, stream = nil, nil
		s.load.Add(-1)
		s.logger.Info().Str("user", job.User()).Str("model", job.Model).Msg("job finished")
	}

	for {
		select {
		case cmd := <-s.commands:
			switch {
			case cmd.enqueue != nil:
				position := len(queue)
				if active != nil {
					position++
				}
				queue = append(queue, *cmd.enqueue)
				s.load.Add(1)
				cmd.enqueue.sink.Publish(events.Queued{Position: uint(position)})
				dispatch()
			case cmd.waiter != nil:
				waiters = append(waiters, cmd.waiter)
				notifyIdle()
			}

		case ev, ok := <-stream:
			forward(ev, ok)
			if !ok {
				dispatch()
			}

		case <-ctx.Done():
			if active != nil {
				s.logger.Info().Str("user", active.job.User()).Msg("draining active job")
				for {
					ev, ok := <-stream
					forward(ev, ok)
					if !ok {
						break
					}
				}
			}
			for _, e := range queue {
				e.sink.Publish(events.Failed{Err: domain.ErrShuttingDown})
				s.load.Add(-1)
			}
			if len(queue) > 0 {
				s.logger.Info().Int("failed", len(queue)).Msg("rejected queued jobs on shutdown")
			}
			for _, w := range waiters {
				close(w)
			}
			return
		}
	}
}
