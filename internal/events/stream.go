package events

import (
	"context"
	"sync"
)

// Stream delivers events to a single consumer in publish order. Publishing
// never blocks: events are buffered without bound until the consumer reads
// them. The channel returned by Events is closed after the terminal event has
// been delivered, or once the consumer's context ends.
type Stream struct {
	ctx context.Context

	mu       sync.Mutex
	pending  []Event
	terminal bool

	wake chan struct{}
	out  chan Event
}

// NewStream starts a stream whose consumer lives as long as ctx.
func NewStream(ctx context.Context) *Stream {
	s := &Stream{
		ctx:  ctx,
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go s.pump()
	return s
}

// Events returns the consumer side of the stream.
func (s *Stream) Events() <-chan Event {
	return s.out
}

// Publish appends e to the stream. It panics if a terminal event was already
// published. Events published after the consumer went away are dropped.
func (s *Stream) Publish(e Event) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		panic("events: publish after terminal event")
	}
	if IsTerminal(e) {
		s.terminal = true
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done reports whether a terminal event has been published.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

func (s *Stream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		finished := s.terminal
		s.mu.Unlock()

		for _, e := range batch {
			select {
			case s.out <- e:
			case <-s.ctx.Done():
				return
			}
		}
		if finished {
			return
		}

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return
		}
	}
}
