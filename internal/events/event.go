// Package events defines the progress events a generation request produces and
// the per-request stream they are delivered through.
package events

import "dreambot/internal/domain"

// Event is one step in the life of a generation request. The set of
// implementations is closed.
type Event interface {
	isEvent()
}

// PromptEnhanced reports the command line a loose description expanded into.
type PromptEnhanced struct {
	Request domain.RawRequest
}

// Validated carries the parsed job.
type Validated struct {
	Job domain.Job
}

// Queued reports how many jobs were queued or running when this one was
// submitted. Zero means the scheduler was idle.
type Queued struct {
	Position uint
}

// Progress reports the share of images produced so far, 0 to 100.
type Progress struct {
	Percent uint
}

// Completed is terminal and carries the generated images.
type Completed struct {
	Result *domain.CompletedJob
}

// Failed is terminal.
type Failed struct {
	Err error
}

func (PromptEnhanced) isEvent() {}
func (Validated) isEvent()      {}
func (Queued) isEvent()         {}
func (Progress) isEvent()       {}
func (Completed) isEvent()      {}
func (Failed) isEvent()         {}

// IsTerminal reports whether e ends a request's stream.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Completed, Failed:
		return true
	default:
		return false
	}
}

// Kind names the event variant for logs and wire encodings.
func Kind(e Event) string {
	switch e.(type) {
	case PromptEnhanced:
		return "prompt_enhanced"
	case Validated:
		return "validated"
	case Queued:
		return "queued"
	case Progress:
		return "progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
