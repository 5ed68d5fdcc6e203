package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"dreambot/internal/catalog"
	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/scheduler"
)

func testCatalog() *catalog.Store {
	return catalog.NewStatic(&catalog.Catalog{
		Models: map[string]catalog.Model{
			"default": {Name: "default", Workflow: "w.json", Baseline: "base.safetensors"},
			"sdxl":    {Name: "sdxl", Workflow: "w.json", Baseline: "sdxl.safetensors"},
		},
		Aliases: map[string]string{},
	})
}

// fakeQueue completes every job synchronously.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job domain.Job, sink scheduler.Sink) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	sink.Publish(events.Queued{Position: 1})
	sink.Publish(events.Progress{Percent: 0})
	sink.Publish(events.Completed{Result: &domain.CompletedJob{ID: uuid.New(), Job: job, Images: [][]byte{[]byte("img")}}})
	return nil
}

func (q *fakeQueue) Load() int                               { return 0 }
func (q *fakeQueue) WaitUntilIdle(ctx context.Context) error { return nil }

type fakeEnhancer struct {
	suggestion domain.Suggestion
	err        error
}

func (e fakeEnhancer) Enhance(ctx context.Context, user, dream string) (domain.Suggestion, error) {
	return e.suggestion, e.err
}

type fakeRecorder struct {
	limitErr error
	recorded chan domain.Job
}

func (r *fakeRecorder) CheckRateLimit(ctx context.Context, job domain.Job, private bool) error {
	return r.limitErr
}

func (r *fakeRecorder) RecordStats(ctx context.Context, job domain.Job, private bool) error {
	r.recorded <- job
	return nil
}

func collect(t *testing.T, ch <-chan events.Event) []events.Event {
	t.Helper()
	var out []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not finish; got %d events", len(out))
		}
	}
}

func kinds(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = events.Kind(ev)
	}
	return out
}

func TestGenerateExplicitCommand(t *testing.T) {
	queue := &fakeQueue{}
	recorder := &fakeRecorder{recorded: make(chan domain.Job, 1)}
	svc := New(Options{Catalog: testCatalog(), Queue: queue, Recorder: recorder})

	evs := collect(t, svc.Generate(context.Background(), domain.RawRequest{User: "alice", Raw: "a cat --model sdxl --count 2"}))
	want := []string{"validated", "queued", "progress", "completed"}
	if diff := cmp.Diff(want, kinds(evs)); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}
	validated := evs[0].(events.Validated)
	if validated.Job.Model != "sdxl" || validated.Job.Count != 2 || validated.Job.Prompt != "a cat" {
		t.Fatalf("validated job = %+v", validated.Job)
	}

	select {
	case job := <-recorder.recorded:
		if job.User() != "alice" {
			t.Fatalf("recorded user = %q", job.User())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stats were not recorded")
	}
}

func TestGenerateDream(t *testing.T) {
	enhancer := fakeEnhancer{suggestion: domain.Suggestion{Prompt: "a cat, watercolor", AspectRatio: "16:9", Comment: "Nice."}}
	svc := New(Options{Catalog: testCatalog(), Queue: &fakeQueue{}, Enhancer: enhancer})

	evs := collect(t, svc.Generate(context.Background(), domain.RawRequest{User: "bob", Dream: "a cat"}))
	want := []string{"prompt_enhanced", "validated", "queued", "progress", "completed"}
	if diff := cmp.Diff(want, kinds(evs)); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}
	enhanced := evs[0].(events.PromptEnhanced)
	if enhanced.Request.Raw != "a cat, watercolor --ar 16:9" || enhanced.Request.Comment != "Nice." {
		t.Fatalf("enhanced request = %+v", enhanced.Request)
	}
	job := evs[1].(events.Validated).Job
	if job.Width != 1344 || job.Height != 768 {
		t.Fatalf("resolution = %dx%d, want 1344x768", job.Width, job.Height)
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		req     domain.RawRequest
		wantErr error
		wantMsg string
	}{
		{
			name:    "empty prompt",
			opts:    Options{Queue: &fakeQueue{}},
			req:     domain.RawRequest{User: "u", Raw: "--count 2"},
			wantErr: domain.ErrInvalidRequest,
			wantMsg: "Linguistic prompt is required",
		},
		{
			name:    "dreams disabled",
			opts:    Options{Queue: &fakeQueue{}},
			req:     domain.RawRequest{User: "u", Dream: "anything"},
			wantErr: domain.ErrInvalidRequest,
			wantMsg: "Dream requests are not enabled",
		},
		{
			name:    "enhancer error",
			opts:    Options{Queue: &fakeQueue{}, Enhancer: fakeEnhancer{err: errors.New("boom")}},
			req:     domain.RawRequest{User: "u", Dream: "anything"},
			wantMsg: "generator: enhance prompt: boom",
		},
		{
			name:    "rate limited",
			opts:    Options{Queue: &fakeQueue{}, Recorder: &fakeRecorder{limitErr: domain.ErrRateLimited}},
			req:     domain.RawRequest{User: "u", Raw: "a cat", Private: true},
			wantErr: domain.ErrRateLimited,
		},
		{
			name:    "shutting down",
			opts:    Options{Queue: &fakeQueue{err: domain.ErrShuttingDown}},
			req:     domain.RawRequest{User: "u", Raw: "a cat"},
			wantErr: domain.ErrShuttingDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Catalog = testCatalog()
			evs := collect(t, New(tt.opts).Generate(context.Background(), tt.req))
			if len(evs) == 0 {
				t.Fatalf("no events")
			}
			failed, ok := evs[len(evs)-1].(events.Failed)
			if !ok {
				t.Fatalf("last event = %T, want Failed", evs[len(evs)-1])
			}
			if tt.wantErr != nil && !errors.Is(failed.Err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", failed.Err, tt.wantErr)
			}
			if tt.wantMsg != "" && failed.Err.Error() != tt.wantMsg {
				t.Fatalf("message = %q, want %q", failed.Err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestWarmup(t *testing.T) {
	queue := &fakeQueue{}
	svc := New(Options{Catalog: testCatalog(), Queue: queue})
	if err := svc.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("queued %d jobs, want 1", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.Prompt != "warmup" || job.Steps == nil || *job.Steps != 1 {
		t.Fatalf("warmup job = %+v", job)
	}

	failing := New(Options{Catalog: testCatalog(), Queue: &fakeQueue{err: domain.ErrShuttingDown}})
	if err := failing.Warmup(context.Background()); !errors.Is(err, domain.ErrShuttingDown) {
		t.Fatalf("Warmup() error = %v, want ErrShuttingDown", err)
	}
}

func TestLookupWithoutArchive(t *testing.T) {
	svc := New(Options{Catalog: testCatalog(), Queue: &fakeQueue{}})
	if _, err := svc.LookupJob(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("LookupJob() error = %v", err)
	}
	urls, err := svc.Archive(context.Background(), &domain.CompletedJob{})
	if err != nil || urls != nil {
		t.Fatalf("Archive() = %v, %v", urls, err)
	}
}
